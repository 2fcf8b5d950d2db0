package mldata

import (
	"encoding/json"
)

// rawPoint accepts both historical point encodings: {"x","y"} and
// {"left","top"}, optionally with frame bounds for video annotations.
type rawPoint struct {
	X          *float64 `json:"x"`
	Y          *float64 `json:"y"`
	Left       *float64 `json:"left"`
	Top        *float64 `json:"top"`
	BeginFrame *int     `json:"begin_frame"`
	EndFrame   *int     `json:"end_frame"`
}

// NormalizePolygon parses and canonicalizes a JSON-encoded polygon. Both
// point encodings in the field ({x,y} and {left,top}) are accepted;
// "left" maps to "x" and "top" to "y". Every point must end up with both
// coordinates, and frame bounds must be present together or not at all.
// Point order is preserved: it traces the annotated boundary.
//
// This is the write-path contract: malformed JSON, null, and non-list
// input are all rejected with an error unwrapping to ErrInvalidPolygon.
// An empty list is a valid zero-vertex polygon.
func NormalizePolygon(text string) ([]Point, error) {
	var raw []rawPoint
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, &PolygonError{Reason: "malformed JSON"}
	}
	if raw == nil {
		// "null" decodes into a nil slice without error.
		return nil, &PolygonError{Reason: "not a list"}
	}

	points := make([]Point, 0, len(raw))
	for _, node := range raw {
		x := node.X
		if x == nil {
			x = node.Left
		}
		y := node.Y
		if y == nil {
			y = node.Top
		}
		if x == nil || y == nil {
			return nil, &PolygonError{Reason: "missing x or y"}
		}
		if (node.BeginFrame == nil) != (node.EndFrame == nil) {
			return nil, &PolygonError{Reason: "missing begin_frame or end_frame"}
		}
		points = append(points, Point{
			X:          *x,
			Y:          *y,
			BeginFrame: node.BeginFrame,
			EndFrame:   node.EndFrame,
		})
	}

	return points, nil
}

// EncodePolygon marshals normalized points into the canonical JSON form
// persisted on a Label. Labels are compared for duplicates on this
// canonical text, so both input encodings of the same polygon collide.
func EncodePolygon(points []Point) string {
	data, err := json.Marshal(points)
	if err != nil {
		// Point contains only numeric fields; Marshal cannot fail.
		return "[]"
	}
	return string(data)
}

// PolygonForDisplay decodes a stored polygon for read paths. Unlike
// NormalizePolygon it never fails: malformed or non-list input degrades
// to an empty polygon so one corrupt row cannot break a details listing.
func PolygonForDisplay(text string) []Point {
	points, err := NormalizePolygon(text)
	if err != nil {
		return []Point{}
	}
	return points
}
