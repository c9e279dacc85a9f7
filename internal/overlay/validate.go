package overlay

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrNotFound is returned when no overlay has the requested id.
var ErrNotFound = errors.New("overlay not found")

// ValidationError reports a request that cannot be accepted as sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Fields is a decoded request body keyed by JSON field name. Keeping the raw
// values lets validation tell an absent field from a zero one.
type Fields map[string]json.RawMessage

// Patch holds the typed, allowed subset of an update body.
type Patch map[string]any

// ParseID converts a 24-character hex id.
func ParseID(s string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return primitive.NilObjectID, &ValidationError{Field: "id", Message: "Invalid overlay ID"}
	}
	return id, nil
}

var textRequired = []string{"text", "top", "left", "color", "fontSize"}

// NewFromFields validates a create body and returns the overlay to insert,
// with defaults filled in. The type defaults to text.
func NewFromFields(f Fields) (Overlay, error) {
	if len(f) == 0 {
		return Overlay{}, &ValidationError{Message: "No data provided"}
	}

	typ := TypeText
	if _, ok := f["type"]; ok {
		if err := decodeField(f, "type", &typ); err != nil {
			return Overlay{}, err
		}
		if err := checkType(typ); err != nil {
			return Overlay{}, err
		}
	}

	if typ == TypeImage {
		return newImage(f)
	}
	return newText(f)
}

func newImage(f Fields) (Overlay, error) {
	o := Overlay{
		Type:         TypeImage,
		Width:        DefaultImageWidth,
		Height:       DefaultImageHeight,
		BorderRadius: DefaultBorderRadius,
	}
	if err := decodeField(f, "imageUrl", &o.ImageURL); err != nil || strings.TrimSpace(o.ImageURL) == "" {
		return Overlay{}, &ValidationError{Field: "imageUrl", Message: "Missing required field: imageUrl"}
	}
	if !has(f, "top") || !has(f, "left") {
		return Overlay{}, &ValidationError{Field: "top", Message: "Missing required position fields: top, left"}
	}

	opacity := DefaultOpacity
	targets := []struct {
		name string
		dst  any
	}{
		{"top", &o.Top},
		{"left", &o.Left},
		{"width", &o.Width},
		{"height", &o.Height},
		{"opacity", &opacity},
		{"borderRadius", &o.BorderRadius},
	}
	for _, t := range targets {
		if err := decodeOptional(f, t.name, t.dst); err != nil {
			return Overlay{}, err
		}
	}
	o.Opacity = &opacity
	return o, nil
}

func newText(f Fields) (Overlay, error) {
	for _, name := range textRequired {
		if !has(f, name) {
			return Overlay{}, &ValidationError{Field: name, Message: "Missing required field: " + name}
		}
	}

	o := Overlay{Type: TypeText, BackgroundColor: DefaultBackgroundColor}
	targets := []struct {
		name string
		dst  any
	}{
		{"text", &o.Text},
		{"top", &o.Top},
		{"left", &o.Left},
		{"color", &o.Color},
		{"fontSize", &o.FontSize},
		{"backgroundColor", &o.BackgroundColor},
	}
	for _, t := range targets {
		if err := decodeOptional(f, t.name, t.dst); err != nil {
			return Overlay{}, err
		}
	}
	return o, nil
}

// BuildPatch keeps only the updatable fields of f, decoded to their stored
// types. Unknown fields are ignored; a body with nothing updatable fails.
func BuildPatch(f Fields) (Patch, error) {
	if len(f) == 0 {
		return nil, &ValidationError{Message: "No data provided"}
	}

	p := Patch{}
	for name, raw := range f {
		var dst any
		switch name {
		case "text", "color", "backgroundColor", "imageUrl":
			dst = new(string)
		case "top", "left", "fontSize", "width", "height", "borderRadius":
			dst = new(Length)
		case "opacity":
			dst = new(float64)
		case "type":
			dst = new(Type)
		default:
			continue
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return nil, invalidField(name)
		}

		switch v := dst.(type) {
		case *string:
			p[name] = *v
		case *Length:
			p[name] = *v
		case *float64:
			p[name] = *v
		case *Type:
			if err := checkType(*v); err != nil {
				return nil, err
			}
			p[name] = *v
		}
	}

	if len(p) == 0 {
		return nil, &ValidationError{Message: "No valid fields to update"}
	}
	return p, nil
}

// apply copies patch values onto o. Keys come from BuildPatch.
func (p Patch) apply(o *Overlay) {
	for name, v := range p {
		switch name {
		case "type":
			o.Type = v.(Type)
		case "text":
			o.Text = v.(string)
		case "color":
			o.Color = v.(string)
		case "backgroundColor":
			o.BackgroundColor = v.(string)
		case "imageUrl":
			o.ImageURL = v.(string)
		case "top":
			o.Top = v.(Length)
		case "left":
			o.Left = v.(Length)
		case "fontSize":
			o.FontSize = v.(Length)
		case "width":
			o.Width = v.(Length)
		case "height":
			o.Height = v.(Length)
		case "borderRadius":
			o.BorderRadius = v.(Length)
		case "opacity":
			opacity := v.(float64)
			o.Opacity = &opacity
		}
	}
}

func checkType(t Type) error {
	if t != TypeText && t != TypeImage {
		return &ValidationError{Field: "type", Message: fmt.Sprintf("Invalid overlay type: %q", t)}
	}
	return nil
}

func has(f Fields, name string) bool {
	_, ok := f[name]
	return ok
}

func decodeField(f Fields, name string, dst any) error {
	raw, ok := f[name]
	if !ok {
		return &ValidationError{Field: name, Message: "Missing required field: " + name}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return invalidField(name)
	}
	return nil
}

func decodeOptional(f Fields, name string, dst any) error {
	if !has(f, name) {
		return nil
	}
	return decodeField(f, name, dst)
}

func invalidField(name string) error {
	return &ValidationError{Field: name, Message: "Invalid value for field: " + name}
}
