package overlay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Type selects how an overlay is drawn on top of the video.
type Type string

const (
	TypeText  Type = "text"
	TypeImage Type = "image"
)

// Defaults applied on create when the field is omitted.
const (
	DefaultBackgroundColor = "rgba(0,0,0,0.5)"
	DefaultImageWidth      = "100px"
	DefaultImageHeight     = "100px"
	DefaultOpacity         = 1.0
	DefaultBorderRadius    = "0px"
)

// Length is a CSS length such as "24px" or "10%". Clients may also send a
// bare number, which is kept as its decimal text.
type Length string

// UnmarshalJSON accepts a JSON string or number.
func (l *Length) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = Length(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("length must be a string or number")
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return fmt.Errorf("length must be a string or number")
	}
	*l = Length(n.String())
	return nil
}

// Overlay is one persisted annotation. Text fields are set for text overlays
// and image fields for image overlays; the other group stays empty.
type Overlay struct {
	ID   primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Type Type               `json:"type" bson:"type"`
	Top  Length             `json:"top" bson:"top"`
	Left Length             `json:"left" bson:"left"`

	Text            string `json:"text,omitempty" bson:"text,omitempty"`
	Color           string `json:"color,omitempty" bson:"color,omitempty"`
	FontSize        Length `json:"fontSize,omitempty" bson:"fontSize,omitempty"`
	BackgroundColor string `json:"backgroundColor,omitempty" bson:"backgroundColor,omitempty"`

	ImageURL     string   `json:"imageUrl,omitempty" bson:"imageUrl,omitempty"`
	Width        Length   `json:"width,omitempty" bson:"width,omitempty"`
	Height       Length   `json:"height,omitempty" bson:"height,omitempty"`
	Opacity      *float64 `json:"opacity,omitempty" bson:"opacity,omitempty"`
	BorderRadius Length   `json:"borderRadius,omitempty" bson:"borderRadius,omitempty"`
}

// ListResult is the body of GET /overlays.
type ListResult struct {
	Data  []Overlay `json:"data"`
	Count int       `json:"count"`
}
