package repl

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	dateLayout        = "2006-01-02"
	timestampLayout   = "2006-01-02 15:04:05.999999999"
	timestampTZLayout = "2006-01-02T15:04:05.999999999Z07:00"
	// postgres renders whole-hour offsets as +09
	timestampTZShortLayout = "2006-01-02T15:04:05.999999999Z07"
)

// parseMessage decodes a raw wal2json frame. Numbers are kept as json.Number so that
// DecodeValue sees the exact text the server sent.
func parseMessage(data []byte) (Message, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var msg Message
	if err := dec.Decode(&msg); err != nil {
		return Message{}, fmt.Errorf("decode wal2json frame: %w", err)
	}
	if msg.Action == "" {
		return Message{}, errors.New("wal2json frame without action")
	}
	return msg, nil
}

// DecodeValue converts a raw column value into a typed value according to the declared
// column type. It never fails: a value that does not parse is returned as its text.
//
//	integer, smallint, bigint           -> int64
//	double precision, real, numeric     -> float64
//	date                                -> time.Time
//	timestamp [without|with time zone]  -> time.Time
//	character varying, character, text  -> string
//
// Unrecognized types pass through untouched, except JSON numbers which become text.
func DecodeValue(raw any, declaredType string) any {
	if raw == nil {
		return nil
	}

	t := strings.ToLower(strings.TrimSpace(declaredType))
	switch {
	case t == "integer" || t == "smallint" || t == "bigint":
		return decodeInteger(raw)
	case t == "double precision" || t == "real" || strings.HasPrefix(t, "numeric"):
		return decodeFloat(raw)
	case t == "date":
		return decodeTime(rawText(raw), "", dateLayout)
	case strings.HasPrefix(t, "timestamp") && strings.HasSuffix(t, "with time zone"):
		return decodeTime(rawText(raw), "T", timestampTZLayout, timestampTZShortLayout)
	case strings.HasPrefix(t, "timestamp"):
		return decodeTime(rawText(raw), "", timestampLayout, "2006-01-02T15:04:05.999999999")
	case strings.HasPrefix(t, "character") || t == "text":
		return rawText(raw)
	}

	if n, ok := raw.(json.Number); ok {
		return n.String()
	}
	return raw
}

func decodeInteger(raw any) any {
	switch v := raw.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		return v.String()
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return int64(v)
		}
		return rawText(raw)
	case int64:
		return v
	case int:
		return int64(v)
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return i
		}
		return v
	}
	return rawText(raw)
}

func decodeFloat(raw any) any {
	switch v := raw.(type) {
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
		return v
	}
	return rawText(raw)
}

// decodeTime tries each layout in turn. A non-empty sep replaces the space between the
// date and the time before parsing; the unmodified text is returned when nothing matches.
func decodeTime(text string, sep string, layouts ...string) any {
	candidate := text
	if sep != "" {
		candidate = strings.Replace(text, " ", sep, 1)
	}
	for _, layout := range layouts {
		if v, err := time.Parse(layout, candidate); err == nil {
			return v
		}
	}
	return text
}

func rawText(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	}
	return fmt.Sprint(raw)
}
