package engine

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/marshallshelly/conduit/pkg/runtime"
	"github.com/marshallshelly/conduit/pkg/schema"
)

// Row maps column names to values. Values are normalised: nil for NULL,
// otherwise string, int64, float64, bool, []byte or time.Time.
type Row map[string]any

// Key addresses one row by its primary key columns.
type Key map[string]any

// Clone returns a shallow copy of r.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// String renders the key as col=value pairs in column order.
func (k Key) String() string {
	cols := make([]string, 0, len(k))
	for c := range k {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprintf("%s=%v", c, k[c])
	}
	return strings.Join(parts, ", ")
}

// KeyOf extracts the primary key of row.
func KeyOf(table *schema.TableMetadata, row Row) Key {
	key := make(Key, len(table.PrimaryKeyColumns()))
	for _, col := range table.PrimaryKeyColumns() {
		key[col] = row[col]
	}
	return key
}

// CheckKey verifies key names exactly the primary key columns of table and
// returns it normalised.
func CheckKey(table *schema.TableMetadata, key Key) (Key, error) {
	pk := table.PrimaryKeyColumns()
	if len(key) != len(pk) {
		return nil, invalidKey(table, key)
	}
	out := make(Key, len(pk))
	for _, col := range pk {
		v, ok := key[col]
		if !ok {
			return nil, invalidKey(table, key)
		}
		out[col] = Normalize(v)
	}
	return out, nil
}

func invalidKey(table *schema.TableMetadata, key Key) error {
	var constraint string
	if table.PrimaryKey != nil {
		constraint = table.PrimaryKey.Name
	}
	return runtime.Violation(runtime.ErrInvalidKey, table.Name, constraint,
		fmt.Sprintf("key must name %v, got %v", table.PrimaryKeyColumns(), key))
}

// EncodeValues renders the values of cols as one comparable string. Each
// value is tagged with its type and quoted, so distinct tuples never
// encode equally.
func EncodeValues(values map[string]any, cols []string) string {
	var b []byte
	for i, col := range cols {
		if i > 0 {
			b = append(b, ',')
		}
		v := values[col]
		b = fmt.Appendf(b, "%T:", v)
		b = strconv.AppendQuote(b, fmt.Sprint(v))
	}
	return string(b)
}

// Normalize converts Go values to the representation rows carry.
// Timestamps are kept at microsecond precision in UTC, as PostgreSQL stores them.
func Normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string, int64, float64, bool, []byte:
		return x
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case int16:
		return int64(x)
	case float32:
		return float64(x)
	case time.Time:
		return x.UTC().Truncate(time.Microsecond)
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		return Normalize(rv.Elem().Interface())
	}
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return int64(rv.Uint())
	case reflect.Bool:
		return rv.Bool()
	}
	return v
}

// Compare orders two normalised values. NULL sorts after every value.
// ok is false when the values are not comparable.
func Compare(a, b any) (c int, ok bool) {
	switch {
	case a == nil && b == nil:
		return 0, true
	case a == nil:
		return 1, true
	case b == nil:
		return -1, true
	}

	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), true
		}
	case int64:
		switch y := b.(type) {
		case int64:
			return cmpOrdered(x, y), true
		case float64:
			return cmpOrdered(float64(x), y), true
		}
	case float64:
		switch y := b.(type) {
		case float64:
			return cmpOrdered(x, y), true
		case int64:
			return cmpOrdered(x, float64(y)), true
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0, true
			case !x:
				return -1, true
			default:
				return 1, true
			}
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y), true
		}
	case []byte:
		if y, ok := b.([]byte); ok {
			return strings.Compare(string(x), string(y)), true
		}
	}
	return 0, false
}

func cmpOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Equal reports whether two normalised non-NULL values are equal. NULL is
// never equal to anything, as in SQL.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return false
	}
	c, ok := Compare(a, b)
	return ok && c == 0
}

// RowFromStruct converts a tagged model into a Row. Zero-valued columns that
// have a database default or identity are left out so the engine fills them.
func RowFromStruct(table *schema.TableMetadata, model any) (Row, error) {
	v := reflect.ValueOf(model)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, fmt.Errorf("%w: nil %s", runtime.ErrInvalidModel, table.Name)
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: model must be a struct, got %s", runtime.ErrInvalidModel, v.Kind())
	}

	row := make(Row, len(table.Columns))
	for _, col := range table.Columns {
		field := v.FieldByName(col.GoField)
		if !field.IsValid() {
			return nil, fmt.Errorf("%w: %s has no field %s", runtime.ErrInvalidModel, v.Type(), col.GoField)
		}
		if (col.Default != nil || col.Identity != nil) && field.IsZero() {
			continue
		}
		row[col.Name] = Normalize(field.Interface())
	}
	return row, nil
}

// ScanStruct copies row into the tagged struct dest points to.
func ScanStruct(table *schema.TableMetadata, row Row, dest any) error {
	v := reflect.ValueOf(dest)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%w: dest must be a pointer to struct", runtime.ErrInvalidModel)
	}
	v = v.Elem()

	for _, col := range table.Columns {
		field := v.FieldByName(col.GoField)
		if !field.IsValid() || !field.CanSet() {
			continue
		}
		if err := assign(field, row[col.Name]); err != nil {
			return fmt.Errorf("column %s.%s: %w", table.Name, col.Name, err)
		}
	}
	return nil
}

// assign stores a normalised value into field, allocating pointers for
// nullable columns.
func assign(field reflect.Value, value any) error {
	if value == nil {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}
	if field.Kind() == reflect.Pointer {
		elem := reflect.New(field.Type().Elem())
		if err := assign(elem.Elem(), value); err != nil {
			return err
		}
		field.Set(elem)
		return nil
	}

	rv := reflect.ValueOf(value)
	switch {
	case rv.Type().AssignableTo(field.Type()):
		field.Set(rv)
	case rv.Type().ConvertibleTo(field.Type()) && sameFamily(rv.Kind(), field.Kind()):
		field.Set(rv.Convert(field.Type()))
	default:
		return fmt.Errorf("%w: cannot assign %T to %s", runtime.ErrInvalidModel, value, field.Type())
	}
	return nil
}

func sameFamily(a, b reflect.Kind) bool {
	family := func(k reflect.Kind) int {
		switch k {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return 1
		case reflect.Float32, reflect.Float64:
			return 2
		case reflect.String:
			return 3
		default:
			return int(k) + 10
		}
	}
	return family(a) == family(b)
}
