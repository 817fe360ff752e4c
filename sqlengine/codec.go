package sqlengine

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/model-history-go/history"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// timeLayouts are tried in order when a driver returns timestamps as text.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// encodeValue converts a field value into a bind argument, after applying the field's setter.
func encodeValue(field history.FieldDefinition, value any) (any, error) {
	if field.Set != nil {
		value = field.Set(value)
	}

	if value == nil {
		return nil, nil
	}

	encoded, err := encodeTyped(field.Type, value)
	if err != nil {
		return nil, fmt.Errorf("%w: field %s: %w", ErrEncodingValueFailed, field.Name, err)
	}

	return encoded, nil
}

func encodeTyped(fieldType history.FieldType, value any) (any, error) {
	switch fieldType {
	case history.FieldTypeInteger, history.FieldTypeBigInt:
		return toInt64(value)

	case history.FieldTypeFloat:
		return toFloat64(value)

	case history.FieldTypeBoolean:
		return toBool(value)

	case history.FieldTypeTimestamp:
		t, err := toTime(value)
		if err != nil {
			return nil, err
		}
		return t.UTC(), nil

	case history.FieldTypeJSON:
		encoded, err := jsonAPI.Marshal(value)
		if err != nil {
			return nil, err
		}
		return string(encoded), nil

	case history.FieldTypeUUID:
		return toUUIDString(value)

	case history.FieldTypeBytes:
		switch v := value.(type) {
		case []byte:
			return v, nil
		case string:
			return []byte(v), nil
		}
		return nil, fmt.Errorf("unsupported bytes value %T", value)

	case history.FieldTypeString, history.FieldTypeText:
		return toString(value), nil

	default:
		return value, nil
	}
}

// decodeValue converts a driver value into the field's Go representation, then applies the field's getter.
func decodeValue(field history.FieldDefinition, raw any) (any, error) {
	var decoded any

	if raw != nil {
		var err error
		decoded, err = decodeTyped(field.Type, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: field %s: %w", ErrDecodingValueFailed, field.Name, err)
		}
	}

	if field.Get != nil {
		return field.Get(decoded), nil
	}

	return decoded, nil
}

func decodeTyped(fieldType history.FieldType, raw any) (any, error) {
	switch fieldType {
	case history.FieldTypeInteger, history.FieldTypeBigInt:
		return toInt64(raw)

	case history.FieldTypeFloat:
		return toFloat64(raw)

	case history.FieldTypeBoolean:
		return toBool(raw)

	case history.FieldTypeTimestamp:
		return toTime(raw)

	case history.FieldTypeJSON:
		var text []byte
		switch v := raw.(type) {
		case []byte:
			text = v
		case string:
			text = []byte(v)
		default:
			return v, nil
		}

		var decoded any
		if err := jsonAPI.Unmarshal(text, &decoded); err != nil {
			return nil, err
		}
		return decoded, nil

	case history.FieldTypeUUID:
		return toUUIDString(raw)

	case history.FieldTypeBytes:
		switch v := raw.(type) {
		case []byte:
			return append([]byte(nil), v...), nil
		case string:
			return []byte(v), nil
		}
		return nil, fmt.Errorf("unsupported bytes value %T", raw)

	case history.FieldTypeString, history.FieldTypeText:
		return toString(raw), nil

	default:
		if v, ok := raw.([]byte); ok {
			return string(v), nil
		}
		return raw, nil
	}
}

func toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case uint:
		return checkedUint(uint64(v))
	case uint64:
		return checkedUint(v)
	case uint32:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("non-integral number %v", v)
		}
		return int64(v), nil
	case history.EventKind:
		return int64(v), nil
	case []byte:
		return strconv.ParseInt(string(v), 10, 64)
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("unsupported integer value %T", value)
	}
}

func checkedUint(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("integer %d overflows int64", v)
	}

	return int64(v), nil
}

func toFloat64(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case []byte:
		return strconv.ParseFloat(string(v), 64)
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		i, err := toInt64(value)
		if err != nil {
			return 0, fmt.Errorf("unsupported float value %T", value)
		}
		return float64(i), nil
	}
}

func toBool(value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case int64:
		return v != 0, nil
	case int:
		return v != 0, nil
	case []byte:
		return strconv.ParseBool(string(v))
	case string:
		return strconv.ParseBool(v)
	default:
		return false, fmt.Errorf("unsupported boolean value %T", value)
	}
}

func toTime(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case *time.Time:
		if v == nil {
			return time.Time{}, fmt.Errorf("nil time pointer")
		}
		return *v, nil
	case []byte:
		return parseTime(string(v))
	case string:
		return parseTime(v)
	case int64:
		return time.Unix(v, 0).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp value %T", value)
	}
}

func parseTime(text string) (time.Time, error) {
	text = strings.TrimSpace(text)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unparsable timestamp %q", text)
}

func toUUIDString(value any) (string, error) {
	switch v := value.(type) {
	case uuid.UUID:
		return v.String(), nil
	case [16]byte:
		return uuid.UUID(v).String(), nil
	case []byte:
		if len(v) == 16 {
			id, err := uuid.FromBytes(v)
			if err != nil {
				return "", err
			}
			return id.String(), nil
		}
		id, err := uuid.ParseBytes(v)
		if err != nil {
			return "", err
		}
		return id.String(), nil
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return "", err
		}
		return id.String(), nil
	default:
		return "", fmt.Errorf("unsupported uuid value %T", value)
	}
}

func toString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
