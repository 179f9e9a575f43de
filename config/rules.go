package config

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type kind int

const (
	kindString kind = iota
	kindBool
	kindInt
	kindFloat
	kindHz
	kindStrings
	kindDuration
)

// coerce converts a decoded TOML value into the Go type the rule expects.
func (k kind) coerce(raw any) (any, error) {
	switch k {
	case kindString:
		if s, ok := raw.(string); ok {
			return s, nil
		}
		return nil, errors.New("must be a string")
	case kindBool:
		if b, ok := raw.(bool); ok {
			return b, nil
		}
		return nil, errors.New("must be a boolean")
	case kindInt:
		if i, ok := raw.(int64); ok {
			return i, nil
		}
		return nil, errors.New("must be an integer")
	case kindFloat:
		switch n := raw.(type) {
		case int64:
			return float64(n), nil
		case float64:
			if math.IsInf(n, 0) || math.IsNaN(n) {
				return nil, errors.New("must be a finite number")
			}
			return n, nil
		}
		return nil, errors.New("must be a number")
	case kindHz:
		switch n := raw.(type) {
		case int64:
			return n, nil
		case float64:
			if n != math.Trunc(n) {
				return nil, errors.New("must be a whole number of Hz")
			}
			return int64(n), nil
		}
		return nil, errors.New("must be a frequency in Hz")
	case kindStrings:
		list, ok := raw.([]any)
		if !ok {
			return nil, errors.New("must be a list of strings")
		}
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, errors.New("must be a list of strings")
			}
			out = append(out, s)
		}
		return out, nil
	case kindDuration:
		s, ok := raw.(string)
		if !ok {
			return nil, errors.New(`must be a duration string such as "30s"`)
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("must be a duration string: %s", err)
		}
		if d < 0 {
			return nil, errors.New("must not be negative")
		}
		return d, nil
	}
	return nil, fmt.Errorf("unsupported rule kind %d", k)
}

type rule struct {
	key      string
	kind     kind
	tag      string
	optional bool
	set      func(c *ScanConfig, v any)
}

var rules = []rule{
	// general
	{key: "general.scan_id", kind: kindString, tag: "required,max=64,pathsafe",
		set: func(c *ScanConfig, v any) { c.General.ScanID = v.(string) }},
	{key: "general.base_dir", kind: kindString, tag: "required",
		set: func(c *ScanConfig, v any) { c.General.BaseDir = v.(string) }},
	{key: "general.regions", kind: kindStrings, tag: "min=1,unique,dive,required",
		set: func(c *ScanConfig, v any) { c.General.Regions = v.([]string) }},

	// search
	{key: "search.enable", kind: kindBool,
		set: func(c *ScanConfig, v any) { c.Search.Enable = v.(bool) }},
	{key: "search.scan_config", kind: kindString,
		set: func(c *ScanConfig, v any) { c.Search.ScanConfig = v.(string) }},
	{key: "search.rescan", kind: kindBool,
		set: func(c *ScanConfig, v any) { c.Search.Rescan = v.(bool) }},
	{key: "search.results_dir", kind: kindString, tag: "required",
		set: func(c *ScanConfig, v any) { c.Search.ResultsDir = v.(string) }},
	{key: "search.step_width", kind: kindInt, tag: "min=1,max=10",
		set: func(c *ScanConfig, v any) { c.Search.StepWidth = int(v.(int64)) }},

	// record
	{key: "record.enable", kind: kindBool,
		set: func(c *ScanConfig, v any) { c.Record.Enable = v.(bool) }},
	{key: "record.results_dir", kind: kindString, tag: "required",
		set: func(c *ScanConfig, v any) { c.Record.ResultsDir = v.(string) }},
	{key: "record.amp_enable", kind: kindBool,
		set: func(c *ScanConfig, v any) { c.Record.AmpEnable = v.(bool) }},
	{key: "record.antenna_enable", kind: kindBool,
		set: func(c *ScanConfig, v any) { c.Record.AntennaEnable = v.(bool) }},
	{key: "record.l_gain", kind: kindInt, tag: "oneof=0 8 16 24 32 40",
		set: func(c *ScanConfig, v any) { c.Record.LGain = int(v.(int64)) }},
	{key: "record.g_gain", kind: kindInt, tag: "min=0,max=62,step=2",
		set: func(c *ScanConfig, v any) { c.Record.GGain = int(v.(int64)) }},
	{key: "record.sample_rate", kind: kindHz, tag: "oneof=4000000 8000000 10000000 12500000 16000000 19200000 20000000",
		set: func(c *ScanConfig, v any) { c.Record.SampleRate = v.(int64) }},
	{key: "record.recording_time", kind: kindFloat, tag: "gte=10,lte=86400",
		set: func(c *ScanConfig, v any) { c.Record.RecordingTime = v.(float64) }},
	{key: "record.baseband_filter_bw", kind: kindHz, tag: "oneof=1750000 2500000 3500000 5000000 5500000 6000000 7000000 8000000 9000000 10000000 12000000 14000000 15000000 20000000 24000000 28000000",
		set: func(c *ScanConfig, v any) { c.Record.BasebandFilterBW = v.(int64) }},

	// matlab
	{key: "matlab.enable", kind: kindBool,
		set: func(c *ScanConfig, v any) { c.Matlab.Enable = v.(bool) }},

	// tools
	{key: "tools.scanner", kind: kindString, tag: "required", optional: true,
		set: func(c *ScanConfig, v any) { c.Tools.Scanner = v.(string) }},
	{key: "tools.recorder", kind: kindString, tag: "required", optional: true,
		set: func(c *ScanConfig, v any) { c.Tools.Recorder = v.(string) }},
	{key: "tools.info", kind: kindString, tag: "required", optional: true,
		set: func(c *ScanConfig, v any) { c.Tools.Info = v.(string) }},
	{key: "tools.scanner_gain", kind: kindInt, tag: "min=0,max=72", optional: true,
		set: func(c *ScanConfig, v any) { c.Tools.ScannerGain = int(v.(int64)) }},
	{key: "tools.scan_timeout", kind: kindDuration, optional: true,
		set: func(c *ScanConfig, v any) { c.Tools.ScanTimeout = v.(time.Duration) }},
	{key: "tools.idle_timeout", kind: kindDuration, optional: true,
		set: func(c *ScanConfig, v any) { c.Tools.IdleTimeout = v.(time.Duration) }},
	{key: "tools.record_margin", kind: kindDuration, optional: true,
		set: func(c *ScanConfig, v any) { c.Tools.RecordMargin = v.(time.Duration) }},
	{key: "tools.retries", kind: kindInt, tag: "min=0,max=10", optional: true,
		set: func(c *ScanConfig, v any) { c.Tools.Retries = int(v.(int64)) }},
	{key: "tools.preflight", kind: kindBool, optional: true,
		set: func(c *ScanConfig, v any) { c.Tools.Preflight = v.(bool) }},

	// history
	{key: "history.driver", kind: kindString, tag: "oneof=sqlite3 mysql", optional: true,
		set: func(c *ScanConfig, v any) { c.History.Driver = v.(string) }},
	{key: "history.dsn", kind: kindString, optional: true,
		set: func(c *ScanConfig, v any) { c.History.DSN = v.(string) }},
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("step", validateStep)
	_ = v.RegisterValidation("pathsafe", validatePathSafe)
	return v
}

// validateStep checks that an integer is a multiple of the tag parameter.
func validateStep(fl validator.FieldLevel) bool {
	step, err := strconv.ParseInt(fl.Param(), 10, 64)
	if err != nil || step <= 0 {
		return false
	}
	switch fl.Field().Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fl.Field().Int()%step == 0
	}
	return false
}

// validatePathSafe rejects values that cannot be used as a single path element.
func validatePathSafe(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let 'required' handle empty values
	}
	if value == "." || value == ".." {
		return false
	}
	return !strings.ContainsAny(value, `/\`)
}

// check walks the rule table once, filling cfg and collecting every violation.
func check(doc map[string]any, cfg *ScanConfig) []Violation {
	var violations []Violation
	for _, r := range rules {
		raw, ok := lookup(doc, r.key)
		if !ok {
			if !r.optional {
				violations = append(violations, Violation{Key: r.key, Message: "is required"})
			}
			continue
		}
		val, err := r.kind.coerce(raw)
		if err != nil {
			violations = append(violations, Violation{Key: r.key, Message: err.Error()})
			continue
		}
		if r.tag != "" {
			if err := validate.Var(val, r.tag); err != nil {
				violations = append(violations, Violation{Key: r.key, Message: formatErrorMessage(err)})
				continue
			}
		}
		r.set(cfg, val)
	}
	return violations
}

func lookup(doc map[string]any, key string) (any, bool) {
	parts := strings.Split(key, ".")
	var cur any = doc
	for _, p := range parts {
		table, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = table[p]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func formatErrorMessage(err error) string {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) || len(fieldErrors) == 0 {
		return err.Error()
	}
	e := fieldErrors[0]
	isList := e.Kind() == reflect.Slice
	switch e.Tag() {
	case "required":
		if strings.Contains(e.Namespace(), "[") {
			return "must not contain empty entries"
		}
		return "must not be empty"
	case "min":
		if isList {
			return fmt.Sprintf("must contain at least %s entries", e.Param())
		}
		return fmt.Sprintf("must be at least %s", e.Param())
	case "max":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", e.Param())
		}
		return fmt.Sprintf("must be at most %s", e.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", e.Param())
	case "lte":
		return fmt.Sprintf("must be <= %s", e.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.Join(strings.Fields(e.Param()), ", "))
	case "unique":
		return "must not contain duplicates"
	case "step":
		return fmt.Sprintf("must be a multiple of %s", e.Param())
	case "pathsafe":
		return `must be usable as a directory name (no "/", "\", "." or "..")`
	}
	return fmt.Sprintf("failed %q check", e.Tag())
}
