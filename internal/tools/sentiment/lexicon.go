package sentiment

// lexicon maps tokens to polarity weights in [-1, 1]. Deliberately
// small: the tool answers "is the user frustrated", not research-grade
// sentiment analysis.
var lexicon = map[string]float64{
	"amazing":    0.9,
	"awesome":    0.9,
	"excellent":  0.9,
	"fantastic":  0.9,
	"great":      0.8,
	"love":       0.8,
	"perfect":    0.8,
	"good":       0.6,
	"helpful":    0.6,
	"nice":       0.5,
	"thanks":     0.5,
	"thank":      0.5,
	"works":      0.4,
	"fine":       0.3,
	"ok":         0.2,
	"okay":       0.2,

	"wrong":       -0.6,
	"bad":         -0.6,
	"slow":        -0.4,
	"confusing":   -0.5,
	"confused":    -0.5,
	"broken":      -0.7,
	"useless":     -0.8,
	"terrible":    -0.9,
	"awful":       -0.9,
	"horrible":    -0.9,
	"hate":        -0.8,
	"garbage":     -0.8,
	"frustrating": -0.7,
	"frustrated":  -0.7,
	"annoying":    -0.6,
	"annoyed":     -0.6,
	"angry":       -0.7,
	"stupid":      -0.7,
	"worst":       -0.9,
	"fail":        -0.6,
	"failed":      -0.6,
	"crash":       -0.6,
	"crashed":     -0.6,
}

// negators flip the sign of a nearby lexicon hit.
var negators = map[string]bool{
	"not":     true,
	"no":      true,
	"never":   true,
	"isn't":   true,
	"isnt":    true,
	"don't":   true,
	"dont":    true,
	"doesn't": true,
	"doesnt":  true,
	"wasn't":  true,
	"wasnt":   true,
	"won't":   true,
	"wont":    true,
	"can't":   true,
	"cant":    true,
}
