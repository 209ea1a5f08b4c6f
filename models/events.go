package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrMissingField is returned when a required field is absent or null
	ErrMissingField = errors.New("missing required field")
	// ErrFieldType is returned when a required field is not text
	ErrFieldType = errors.New("unexpected field type")
)

// FieldSource is a decoded, camelCase-keyed column set
type FieldSource interface {
	Get(name string) (any, bool)
}

// SeoulRestaurantEvent is a change of open_data_cloud.seoul_restaurant
type SeoulRestaurantEvent struct {
	Action string

	ManagementNumber  string
	BusinessPlaceName string
	TradeStateCode    string

	RoadWholeAddress *string
	SiteWholeAddress *string
	SiteTel          *string
	XCoordinate      *float64
	YCoordinate      *float64
	ApprovalDate     *time.Time
	CloseDate        *time.Time
}

// NewSeoulRestaurantEvent builds the typed event from decoded fields
func NewSeoulRestaurantEvent(action string, f FieldSource) (SeoulRestaurantEvent, error) {
	ev := SeoulRestaurantEvent{Action: action}

	var err error
	if ev.ManagementNumber, err = requiredString(f, "managementNumber"); err != nil {
		return ev, err
	}
	if ev.BusinessPlaceName, err = requiredString(f, "businessPlaceName"); err != nil {
		return ev, err
	}
	if ev.TradeStateCode, err = requiredString(f, "tradeStateCode"); err != nil {
		return ev, err
	}

	ev.RoadWholeAddress = optionalString(f, "roadWholeAddress")
	ev.SiteWholeAddress = optionalString(f, "siteWholeAddress")
	ev.SiteTel = optionalString(f, "siteTel")
	ev.XCoordinate = optionalFloat(f, "xCoordinate")
	ev.YCoordinate = optionalFloat(f, "yCoordinate")
	ev.ApprovalDate = optionalTime(f, "approvalDate")
	ev.CloseDate = optionalTime(f, "closeDate")
	return ev, nil
}

// Address returns the road address when present, otherwise the lot-number address
func (e *SeoulRestaurantEvent) Address() (string, bool) {
	if e.RoadWholeAddress != nil && *e.RoadWholeAddress != "" {
		return *e.RoadWholeAddress, true
	}
	if e.SiteWholeAddress != nil && *e.SiteWholeAddress != "" {
		return *e.SiteWholeAddress, true
	}
	return "", false
}

func requiredString(f FieldSource, name string) (string, error) {
	v, ok := f.Get(name)
	if !ok || v == nil {
		return "", fmt.Errorf("%w: %s", ErrMissingField, name)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s is %T", ErrFieldType, name, v)
	}
	return s, nil
}

// Optional fields are lenient: the registry stores some of them as text, so a value of
// another type is converted when possible and dropped otherwise.
func optionalString(f FieldSource, name string) *string {
	v, ok := f.Get(name)
	if !ok || v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprint(v)
	}
	return &s
}

func optionalFloat(f FieldSource, name string) *float64 {
	v, ok := f.Get(name)
	if !ok || v == nil {
		return nil
	}
	switch n := v.(type) {
	case float64:
		return &n
	case int64:
		x := float64(n)
		return &x
	case string:
		if x, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return &x
		}
	}
	return nil
}

func optionalTime(f FieldSource, name string) *time.Time {
	v, ok := f.Get(name)
	if !ok || v == nil {
		return nil
	}
	if t, ok := v.(time.Time); ok {
		return &t
	}
	return nil
}
