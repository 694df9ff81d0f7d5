package yafilters

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/YaCodeDev/GoVKTeamsBot/yadispatcher"
	"github.com/YaCodeDev/GoVKTeamsBot/yatypes"
)

// DefaultCallbackSeparator delimits the fields of a packed callback payload.
const DefaultCallbackSeparator = ":"

// callbackDataKey is the bag key the parsed record is injected under.
const callbackDataKey = "callback_data"

var (
	// ErrCallbackWrongPrefix means the payload belongs to another factory.
	ErrCallbackWrongPrefix = errors.New("callback payload has wrong prefix")

	// ErrCallbackFieldCount means the payload does not carry exactly one
	// value per field of the record type.
	ErrCallbackFieldCount = errors.New("callback payload has wrong field count")

	// ErrCallbackBadField means one field value could not be parsed into
	// the record's field type.
	ErrCallbackBadField = errors.New("callback payload has unparsable field")

	// ErrCallbackUnsupportedField means the record type carries a field of
	// a kind the factory cannot serialize.
	ErrCallbackUnsupportedField = errors.New("callback record field kind is unsupported")
)

// CallbackFactory packs and unpacks a typed record to and from delimited
// callback payload strings under a registered prefix, and builds filters that
// match and parse such payloads in one step.
//
// T must be a struct; its exported fields, in declaration order, become the
// payload fields. Supported field kinds: strings, integers, unsigned
// integers, floats and bools.
//
// Example:
//
//	type ProductAction struct {
//		Action string
//		ID     int64
//	}
//
//	factory := yafilters.NewCallbackFactory[ProductAction]("product")
//
//	payload, _ := factory.Pack(ProductAction{Action: "buy", ID: 42})
//	// payload == "product:buy:42"
//
//	router.CallbackQuery().Register(buyHandler, factory.Filter(
//		func(record ProductAction) bool { return record.Action == "buy" },
//	))
type CallbackFactory[T any] struct {
	prefix    string
	separator string
	fields    []int
}

// NewCallbackFactory registers a factory for prefix with the default
// separator. It panics when T is not a struct or has an unsupported exported
// field, since a malformed record type is a programming error.
func NewCallbackFactory[T any](prefix string) *CallbackFactory[T] {
	return NewCallbackFactoryWithSeparator[T](prefix, DefaultCallbackSeparator)
}

// NewCallbackFactoryWithSeparator is NewCallbackFactory with a custom field
// separator.
func NewCallbackFactoryWithSeparator[T any](prefix, separator string) *CallbackFactory[T] {
	recordType := reflect.TypeOf((*T)(nil)).Elem()
	if recordType.Kind() != reflect.Struct {
		panic(fmt.Sprintf("callback record type %s is not a struct", recordType))
	}

	var fields []int

	for i := 0; i < recordType.NumField(); i++ {
		field := recordType.Field(i)
		if !field.IsExported() {
			continue
		}

		if !supportedFieldKind(field.Type.Kind()) {
			panic(fmt.Sprintf(
				"callback record field %s.%s has unsupported kind %s",
				recordType, field.Name, field.Type.Kind(),
			))
		}

		fields = append(fields, i)
	}

	return &CallbackFactory[T]{
		prefix:    prefix,
		separator: separator,
		fields:    fields,
	}
}

func supportedFieldKind(kind reflect.Kind) bool {
	switch kind {
	case reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.Bool:
		return true
	default:
		return false
	}
}

// Prefix returns the registered payload prefix.
func (f *CallbackFactory[T]) Prefix() string {
	return f.prefix
}

// Pack serializes a record into a payload string. It fails when a field
// value itself contains the separator, since that would not round-trip.
func (f *CallbackFactory[T]) Pack(record T) (string, error) {
	value := reflect.ValueOf(record)

	parts := make([]string, 0, len(f.fields)+1)
	parts = append(parts, f.prefix)

	for _, index := range f.fields {
		field := value.Field(index)

		var part string

		switch field.Kind() {
		case reflect.String:
			part = field.String()
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			part = strconv.FormatInt(field.Int(), 10)
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			part = strconv.FormatUint(field.Uint(), 10)
		case reflect.Float32, reflect.Float64:
			part = strconv.FormatFloat(field.Float(), 'g', -1, field.Type().Bits())
		case reflect.Bool:
			part = strconv.FormatBool(field.Bool())
		default:
			return "", fmt.Errorf(
				"%w: %s", ErrCallbackUnsupportedField, field.Kind(),
			)
		}

		if strings.Contains(part, f.separator) {
			return "", fmt.Errorf(
				"%w: value %q contains separator %q",
				ErrCallbackBadField, part, f.separator,
			)
		}

		parts = append(parts, part)
	}

	return strings.Join(parts, f.separator), nil
}

// Unpack parses a payload string back into a record. Wrong prefix and wrong
// field count fail with distinct errors, never silent coercion.
func (f *CallbackFactory[T]) Unpack(payload string) (T, error) {
	var record T

	parts := strings.Split(payload, f.separator)

	if parts[0] != f.prefix {
		return record, fmt.Errorf(
			"%w: want %q, got %q", ErrCallbackWrongPrefix, f.prefix, parts[0],
		)
	}

	if len(parts)-1 != len(f.fields) {
		return record, fmt.Errorf(
			"%w: want %d, got %d", ErrCallbackFieldCount, len(f.fields), len(parts)-1,
		)
	}

	value := reflect.ValueOf(&record).Elem()

	for i, index := range f.fields {
		part := parts[i+1]
		field := value.Field(index)

		switch field.Kind() {
		case reflect.String:
			field.SetString(part)

		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			parsed, err := strconv.ParseInt(part, 10, 64)
			if err != nil || field.OverflowInt(parsed) {
				return record, fmt.Errorf(
					"%w: %q is not a valid %s", ErrCallbackBadField, part, field.Kind(),
				)
			}

			field.SetInt(parsed)

		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			parsed, err := strconv.ParseUint(part, 10, 64)
			if err != nil || field.OverflowUint(parsed) {
				return record, fmt.Errorf(
					"%w: %q is not a valid %s", ErrCallbackBadField, part, field.Kind(),
				)
			}

			field.SetUint(parsed)

		case reflect.Float32, reflect.Float64:
			parsed, err := strconv.ParseFloat(part, 64)
			if err != nil || field.OverflowFloat(parsed) {
				return record, fmt.Errorf(
					"%w: %q is not a valid %s", ErrCallbackBadField, part, field.Kind(),
				)
			}

			field.SetFloat(parsed)

		case reflect.Bool:
			parsed, err := strconv.ParseBool(part)
			if err != nil {
				return record, fmt.Errorf(
					"%w: %q is not a valid bool", ErrCallbackBadField, part,
				)
			}

			field.SetBool(parsed)

		default:
			return record, fmt.Errorf(
				"%w: %s", ErrCallbackUnsupportedField, field.Kind(),
			)
		}
	}

	return record, nil
}

// Filter matches a callback press whose payload unpacks under this factory
// and passes every given predicate, injecting the parsed record.
func (f *CallbackFactory[T]) Filter(rules ...func(T) bool) yadispatcher.Filter {
	return func(_ context.Context, event yatypes.Event, data *yadispatcher.Data) (bool, error) {
		query, ok := event.(*yatypes.CallbackQuery)
		if !ok {
			return false, nil
		}

		record, err := f.Unpack(query.CallbackData)
		if err != nil {
			return false, nil
		}

		for _, rule := range rules {
			if !rule(record) {
				return false, nil
			}
		}

		data.Set(callbackDataKey, record)

		return true, nil
	}
}

// CallbackRecordFromData returns the record a factory filter injected.
func CallbackRecordFromData[T any](data *yadispatcher.Data) (T, bool) {
	var record T

	value, ok := data.Get(callbackDataKey)
	if !ok {
		return record, false
	}

	record, ok = value.(T)

	return record, ok
}
