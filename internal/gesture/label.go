// Package gesture holds the gesture vocabulary and a landmark template
// matcher used when the recognizer reports hands without classifying them.
package gesture

// Label is a gesture classification name as reported by the recognizer.
type Label string

// Labels produced by the MediaPipe canned gesture classifier.
const (
	None       Label = "None"
	ClosedFist Label = "Closed_Fist"
	OpenPalm   Label = "Open_Palm"
	PointingUp Label = "Pointing_Up"
	ThumbDown  Label = "Thumb_Down"
	ThumbUp    Label = "Thumb_Up"
	Victory    Label = "Victory"
	ILoveYou   Label = "ILoveYou"
)

var known = map[Label]struct{}{
	None: {}, ClosedFist: {}, OpenPalm: {}, PointingUp: {},
	ThumbDown: {}, ThumbUp: {}, Victory: {}, ILoveYou: {},
}

// Known reports whether l belongs to the canned vocabulary.
func (l Label) Known() bool {
	_, ok := known[l]
	return ok
}

// Empty reports whether l carries no gesture at all.
func (l Label) Empty() bool {
	return l == "" || l == None
}

func (l Label) String() string {
	return string(l)
}
