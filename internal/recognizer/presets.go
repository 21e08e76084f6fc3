package recognizer

// Preset hands in normalized image coordinates (Y grows downwards), used by
// the mock recognizer, the built-in gesture templates and tests.

func presetHand(points [NumLandmarks]Point3D) HandLandmarks {
	return HandLandmarks{Points: points, Handedness: "Right", Score: 0.95}
}

// ThumbsUpLandmarks returns a right hand with the thumb pointing up and
// the other fingers curled into the palm.
func ThumbsUpLandmarks() HandLandmarks {
	return presetHand([NumLandmarks]Point3D{
		Wrist:    {X: 0.5, Y: 0.8},
		ThumbCMC: {X: 0.55, Y: 0.75}, ThumbMCP: {X: 0.58, Y: 0.65}, ThumbIP: {X: 0.58, Y: 0.50}, ThumbTip: {X: 0.58, Y: 0.35},
		IndexMCP: {X: 0.55, Y: 0.70, Z: -0.02}, IndexPIP: {X: 0.55, Y: 0.68, Z: -0.05}, IndexDIP: {X: 0.52, Y: 0.70, Z: -0.04}, IndexTip: {X: 0.50, Y: 0.72, Z: -0.02},
		MiddleMCP: {X: 0.50, Y: 0.68, Z: -0.02}, MiddlePIP: {X: 0.50, Y: 0.66, Z: -0.05}, MiddleDIP: {X: 0.47, Y: 0.68, Z: -0.04}, MiddleTip: {X: 0.45, Y: 0.70, Z: -0.02},
		RingMCP: {X: 0.45, Y: 0.70, Z: -0.02}, RingPIP: {X: 0.45, Y: 0.68, Z: -0.05}, RingDIP: {X: 0.42, Y: 0.70, Z: -0.04}, RingTip: {X: 0.40, Y: 0.72, Z: -0.02},
		PinkyMCP: {X: 0.40, Y: 0.72, Z: -0.02}, PinkyPIP: {X: 0.40, Y: 0.70, Z: -0.05}, PinkyDIP: {X: 0.37, Y: 0.72, Z: -0.04}, PinkyTip: {X: 0.35, Y: 0.74, Z: -0.02},
	})
}

// ClosedFistLandmarks returns a right hand with every finger, thumb
// included, folded over the palm.
func ClosedFistLandmarks() HandLandmarks {
	return presetHand([NumLandmarks]Point3D{
		Wrist:    {X: 0.5, Y: 0.8},
		ThumbCMC: {X: 0.55, Y: 0.76}, ThumbMCP: {X: 0.58, Y: 0.71}, ThumbIP: {X: 0.55, Y: 0.68, Z: -0.03}, ThumbTip: {X: 0.51, Y: 0.69, Z: -0.05},
		IndexMCP: {X: 0.55, Y: 0.66, Z: -0.02}, IndexPIP: {X: 0.56, Y: 0.62, Z: -0.06}, IndexDIP: {X: 0.54, Y: 0.67, Z: -0.07}, IndexTip: {X: 0.53, Y: 0.70, Z: -0.05},
		MiddleMCP: {X: 0.50, Y: 0.65, Z: -0.02}, MiddlePIP: {X: 0.50, Y: 0.61, Z: -0.06}, MiddleDIP: {X: 0.49, Y: 0.66, Z: -0.07}, MiddleTip: {X: 0.49, Y: 0.69, Z: -0.05},
		RingMCP: {X: 0.46, Y: 0.66, Z: -0.02}, RingPIP: {X: 0.45, Y: 0.62, Z: -0.06}, RingDIP: {X: 0.45, Y: 0.67, Z: -0.07}, RingTip: {X: 0.45, Y: 0.70, Z: -0.05},
		PinkyMCP: {X: 0.42, Y: 0.68, Z: -0.02}, PinkyPIP: {X: 0.41, Y: 0.65, Z: -0.05}, PinkyDIP: {X: 0.41, Y: 0.69, Z: -0.06}, PinkyTip: {X: 0.42, Y: 0.71, Z: -0.04},
	})
}

// OpenPalmLandmarks returns a right hand with all fingers spread.
func OpenPalmLandmarks() HandLandmarks {
	return presetHand([NumLandmarks]Point3D{
		Wrist:    {X: 0.5, Y: 0.8},
		ThumbCMC: {X: 0.55, Y: 0.75, Z: 0.02}, ThumbMCP: {X: 0.62, Y: 0.70, Z: 0.03}, ThumbIP: {X: 0.68, Y: 0.65, Z: 0.03}, ThumbTip: {X: 0.73, Y: 0.60, Z: 0.03},
		IndexMCP: {X: 0.55, Y: 0.68}, IndexPIP: {X: 0.57, Y: 0.55}, IndexDIP: {X: 0.58, Y: 0.45}, IndexTip: {X: 0.58, Y: 0.35},
		MiddleMCP: {X: 0.50, Y: 0.66}, MiddlePIP: {X: 0.50, Y: 0.52}, MiddleDIP: {X: 0.50, Y: 0.40}, MiddleTip: {X: 0.50, Y: 0.28},
		RingMCP: {X: 0.45, Y: 0.68}, RingPIP: {X: 0.43, Y: 0.55}, RingDIP: {X: 0.42, Y: 0.45}, RingTip: {X: 0.42, Y: 0.35},
		PinkyMCP: {X: 0.40, Y: 0.70}, PinkyPIP: {X: 0.37, Y: 0.60}, PinkyDIP: {X: 0.35, Y: 0.50}, PinkyTip: {X: 0.34, Y: 0.42},
	})
}
