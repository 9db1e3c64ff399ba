package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// More configuration errors.
var (
	ErrConfigKeyRequired  = errors.New("configuration key is required")
	ErrInvalidConfigValue = errors.New("invalid configuration value")
)

// ConfigUpdate is a request to store one business-rule override.
type ConfigUpdate struct {
	Key         string          `json:"key"`
	Value       json.RawMessage `json:"value"`
	Description string          `json:"description,omitempty"`
	DataType    DataType        `json:"dataType,omitempty"`
}

// ConfigValue is a stored entry as shown to clients.
type ConfigValue struct {
	Value       json.RawMessage `json:"value"`
	Description string          `json:"description,omitempty"`
	DataType    DataType        `json:"dataType"`
}

// ConfigOverview is the response of GET /api/config.
type ConfigOverview struct {
	Environment     map[string]string      `json:"environment"`
	BusinessRules   map[string]int         `json:"businessRules"`
	DatabaseConfigs map[string]ConfigValue `json:"databaseConfigs"`
}

// UIConfig is the subset of rules the dashboard needs.
type UIConfig struct {
	ClassDuration        int `json:"classDuration"`
	MaxStudentClasses    int `json:"maxStudentClasses"`
	MaxInstructorClasses int `json:"maxInstructorClasses"`
}

// ConfigResult is the per-key outcome of a bulk update.
type ConfigResult struct {
	Key    string       `json:"key"`
	Status string       `json:"status"` // "success" or "error"
	Data   *ConfigEntry `json:"data,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// ConfigOverview reports masked environment settings, the effective rules
// and every stored entry.
func (s *Service) ConfigOverview(ctx context.Context) (*ConfigOverview, error) {
	entries, err := s.store.ListConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("list config: %w", err)
	}
	rules := s.defaults.ApplyEntries(entries, s.logger(ctx))

	dbURL := "Not set"
	if s.cfg.Database.URL != "" {
		dbURL = "***"
	}

	stored := make(map[string]ConfigValue, len(entries))
	for _, e := range entries {
		stored[e.Key] = ConfigValue{Value: e.Value, Description: e.Description, DataType: e.DataType}
	}

	return &ConfigOverview{
		Environment: map[string]string{
			"PORT":         fmt.Sprint(s.cfg.Server.Port),
			"STORE_DRIVER": s.cfg.Database.Driver,
			"DATABASE_URL": dbURL,
			"LOG_LEVEL":    s.cfg.Logging.Level,
		},
		BusinessRules:   rules.Values(),
		DatabaseConfigs: stored,
	}, nil
}

// UIConfig returns the effective class duration and daily limits.
func (s *Service) UIConfig(ctx context.Context) (*UIConfig, error) {
	rules, err := s.Rules(ctx)
	if err != nil {
		return nil, err
	}
	v := rules.Values()
	return &UIConfig{
		ClassDuration:        v[KeyClassDuration],
		MaxStudentClasses:    v[KeyMaxStudentClassesPerDay],
		MaxInstructorClasses: v[KeyMaxInstructorClassesPerDay],
	}, nil
}

// SetConfig validates and stores one override. Only the business-rule keys
// are writable, and their values must be numeric.
func (s *Service) SetConfig(ctx context.Context, u ConfigUpdate) (ConfigEntry, error) {
	u.Key = strings.TrimSpace(u.Key)
	if u.Key == "" || len(u.Value) == 0 || string(u.Value) == "null" {
		return ConfigEntry{}, ErrConfigValueRequired
	}
	if !IsRuleKey(u.Key) {
		return ConfigEntry{}, fmt.Errorf("%w: %s", ErrConfigKeyNotAllowed, u.Key)
	}
	if u.DataType == "" {
		u.DataType = DataTypeString
	}
	if !u.DataType.Valid() {
		return ConfigEntry{}, fmt.Errorf("%w: %s", ErrInvalidDataType, u.DataType)
	}
	if _, err := ParseRuleValue(u.Value); err != nil {
		return ConfigEntry{}, fmt.Errorf("%w for %s: %v", ErrInvalidConfigValue, u.Key, err)
	}

	entry := ConfigEntry{
		Key:         u.Key,
		Value:       u.Value,
		Description: u.Description,
		DataType:    u.DataType,
		UpdatedAt:   s.now(),
	}
	if err := s.store.SetConfig(ctx, entry); err != nil {
		return ConfigEntry{}, fmt.Errorf("set config %s: %w", u.Key, err)
	}

	s.logger(ctx).Info("config updated", "key", u.Key, "value", string(u.Value))
	return entry, nil
}

// BulkSetConfig applies each update independently and reports per-key results.
func (s *Service) BulkSetConfig(ctx context.Context, updates []ConfigUpdate) []ConfigResult {
	results := make([]ConfigResult, 0, len(updates))
	for _, u := range updates {
		entry, err := s.SetConfig(ctx, u)
		if err != nil {
			results = append(results, ConfigResult{Key: u.Key, Status: "error", Error: MapError(err).Message})
			continue
		}
		results = append(results, ConfigResult{Key: u.Key, Status: "success", Data: &entry})
	}
	return results
}

// ResetConfig deletes a stored override so the default applies again.
// Resetting a key that was never set is not an error.
func (s *Service) ResetConfig(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrConfigKeyRequired
	}
	if _, err := s.store.DeleteConfig(ctx, key); err != nil {
		return fmt.Errorf("reset config %s: %w", key, err)
	}
	s.logger(ctx).Info("config reset", "key", key)
	return nil
}
