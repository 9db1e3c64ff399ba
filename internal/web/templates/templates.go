// Package templates renders the HTML upload page, batch results and error
// alerts as templ components. Edit the .templ sources and run templ generate.
package templates

import "strconv"

// UploadPageData describes the upload form and the rules currently in force.
type UploadPageData struct {
	FieldName     string
	Columns       []string
	ClassDuration int
	MaxStudent    int
	MaxInstructor int
	MaxPerType    int
}

// perTypeLimit renders the class-type cap, where 0 means no cap.
func perTypeLimit(n int) string {
	if n <= 0 {
		return "unlimited"
	}
	return strconv.Itoa(n)
}
