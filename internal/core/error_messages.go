package core

// error_messages.go maps errors to user-facing messages with support codes.
//
// # Registration Row Errors (REG001-REG099)
//
// Row failures carry their own message; the code identifies the rule:
//
//	REG001 - Action is required
//	REG002 - Invalid action (only new, update, delete)
//	REG003 - Required field missing for a new registration
//	REG004 - Start time not in MM/DD/YYYY HH:mm
//	REG005 - Referenced instructor, class type or registration not found
//	REG006 - Student or instructor already has an overlapping class
//	REG007 - Student daily limit exceeded
//	REG008 - Instructor daily limit exceeded
//	REG009 - Class type daily capacity exceeded
//	REG010 - Registration ID missing for update/delete
//	REG011 - Row timed out (retryable)
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large
//	FILE002 - File is not valid CSV
//	FILE003 - No file uploaded
//
// # Upload Errors (UPL001-UPL099)
//
//	UPL001 - Request was cancelled
//	UPL002 - Too many imports in progress
//	UPL003 - Request timed out
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key
//	DB002 - Foreign key violation
//	DB003 - Connection refused
//	DB004 - Connection reset
//	DB005 - Timeout
//	DB006 - Record not found
//
// # Request Errors (VAL001-VAL099)
//
//	VAL001 - Malformed query parameter
//	VAL002 - Malformed request body
//
// # Configuration Errors (CFG001-CFG099)
//
//	CFG001 - Key is not writable through the API
//	CFG002 - Unknown data type
//	CFG003 - Key or value missing
//	CFG004 - Value is not a number
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Check the application logs for the
// technical error when a user reports ERR000.
//
// Typed errors (*RowError, *MalformedBatchError, ErrTooManyUploads) are
// matched first; everything else falls through to case-insensitive substring
// patterns, first match wins.

import (
	"errors"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

var kindMessages = map[Kind]UserMessage{
	KindMissingAction:     {Action: "Set Action to new, update or delete", Code: "REG001"},
	KindInvalidAction:     {Action: "Set Action to new, update or delete", Code: "REG002"},
	KindIncompleteRow:     {Action: "Fill Student ID, Instructor ID, Class ID and Class Start Time", Code: "REG003"},
	KindInvalidDate:       {Action: "Use MM/DD/YYYY HH:mm, for example 06/01/2025 09:00", Code: "REG004"},
	KindNotFound:          {Action: "Check the referenced ID exists", Code: "REG005"},
	KindOverlap:           {Action: "Pick a time that does not overlap an existing class", Code: "REG006"},
	KindStudentQuota:      {Action: "Schedule the class on another day", Code: "REG007"},
	KindInstructorQuota:   {Action: "Schedule with another instructor or on another day", Code: "REG008"},
	KindClassTypeCapacity: {Action: "Schedule the class on another day", Code: "REG009"},
	KindMissingID:         {Action: "Provide the Registration ID to change", Code: "REG010"},
	KindTimeout:           {Action: "Upload the row again", Code: "REG011"},
}

// Configuration errors returned by the config service.
var (
	ErrConfigKeyNotAllowed = errors.New("configuration key is not allowed")
	ErrInvalidDataType     = errors.New("invalid data type")
	ErrConfigValueRequired = errors.New("key and value are required")
)

// Request errors raised before the service is reached.
var (
	ErrNoFile         = errors.New("no file provided")
	ErrInvalidRequest = errors.New("invalid request body")
)

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	{"duplicate key", UserMessage{Message: "A record with this ID already exists", Action: "Use a different ID", Code: "DB001"}},
	{"unique constraint", UserMessage{Message: "A record with this ID already exists", Action: "Use a different ID", Code: "DB001"}},
	{"foreign key", UserMessage{Message: "Referenced record does not exist", Action: "Create the referenced record first", Code: "DB002"}},
	{"connection refused", UserMessage{Message: "Unable to connect to database", Action: "Please try again in a few moments", Code: "DB003"}},
	{"connection reset", UserMessage{Message: "Database connection was interrupted", Action: "Please try again", Code: "DB004"}},
	{"context canceled", UserMessage{Message: "Request was cancelled", Action: "Please try again", Code: "UPL001"}},
	{"context deadline exceeded", UserMessage{Message: "Request timed out", Action: "Try a smaller file or try again later", Code: "UPL003"}},
	{"timeout", UserMessage{Message: "Operation timed out", Action: "Please try again later", Code: "DB005"}},
	{"record not found", UserMessage{Message: "Record not found", Action: "Check the ID is correct", Code: "DB006"}},
	{"request body too large", UserMessage{Message: "File exceeds maximum size limit", Action: "Split the file into smaller chunks", Code: "FILE001"}},
	{"file too large", UserMessage{Message: "File exceeds maximum size limit", Action: "Split the file into smaller chunks", Code: "FILE001"}},
	{"no file provided", UserMessage{Message: "No CSV file uploaded", Action: "Attach a CSV file in the csvFile field", Code: "FILE003"}},
	{"configuration key is not allowed", UserMessage{Message: "Configuration key is not allowed to be updated via API", Action: "Use one of " + strings.Join(RuleKeys, ", "), Code: "CFG001"}},
	{"invalid data type", UserMessage{Message: "Invalid data type", Action: "Use number, string, boolean, array or object", Code: "CFG002"}},
	{"key and value are required", UserMessage{Message: "Key and value are required", Action: "Send both key and value", Code: "CFG003"}},
	{"configuration key is required", UserMessage{Message: "Configuration key is required", Action: "Send the key to reset", Code: "CFG003"}},
	{"invalid configuration value", UserMessage{Message: "Configuration value must be a number", Action: "Send a whole number such as 45", Code: "CFG004"}},
	{"invalid query parameter", UserMessage{Message: "Invalid query parameter", Action: "Dates use YYYY-MM-DD", Code: "VAL001"}},
	{"invalid request body", UserMessage{Message: "Invalid request body", Action: "Send a JSON object", Code: "VAL002"}},
	{"rate limit", UserMessage{Message: "Too many requests", Action: "Please wait a moment before trying again", Code: "RATE001"}},
}

var (
	malformedMessage = UserMessage{
		Message: "File is not a valid CSV",
		Action:  "Ensure the file is comma-separated with a header row",
		Code:    "FILE002",
	}
	busyMessage = UserMessage{
		Message: "System is busy processing other imports",
		Action:  "Please wait a moment and try again",
		Code:    "UPL002",
	}
	defaultMessage = UserMessage{
		Message: "An unexpected error occurred",
		Action:  "Please try again or contact support",
		Code:    "ERR000",
	}
)

// MapError converts an error to a user-facing message.
//
//	msg := MapError(errStudentQuota(3))
//	// msg.Code == "REG007"
//	// msg.Message == "Student daily limit exceeded (max: 3)"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var re *RowError
	if errors.As(err, &re) {
		if re.Kind != KindInternal {
			msg := kindMessages[re.Kind]
			msg.Message = re.Msg
			return msg
		}
		if re.Err != nil {
			return MapError(re.Err)
		}
	}

	var mbe *MalformedBatchError
	if errors.As(err, &mbe) {
		return malformedMessage
	}
	if errors.Is(err, ErrTooManyUploads) {
		return busyMessage
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}
