package tax

// jurisdiction holds the state-level base rate plus county surcharges that
// stack on top of it. County keys are lower-case.
type jurisdiction struct {
	defaultRate float64
	counties    map[string]float64
}

// stateRates indexes jurisdictions by two-letter state abbreviation. States
// without a sales tax carry a zero default and no county entries.
var stateRates = map[string]jurisdiction{
	"AL": {defaultRate: 0.04, counties: map[string]float64{
		"jefferson":  0.02,
		"mobile":     0.015,
		"montgomery": 0.025,
	}},
	"AK": {defaultRate: 0, counties: map[string]float64{
		"anchorage": 0,
		"juneau":    0.05,
	}},
	"AZ": {defaultRate: 0.056, counties: map[string]float64{
		"maricopa": 0.007,
		"pima":     0.005,
	}},
	"AR": {defaultRate: 0.065, counties: map[string]float64{
		"pulaski": 0.01,
	}},
	"CA": {defaultRate: 0.0725, counties: map[string]float64{
		"alameda":       0.0300,
		"los angeles":   0.0225,
		"orange":        0.0050,
		"sacramento":    0.0050,
		"san diego":     0.0050,
		"san francisco": 0.0138,
		"santa clara":   0.0188,
	}},
	"CO": {defaultRate: 0.029, counties: map[string]float64{
		"denver":    0.0481,
		"el paso":   0.0123,
		"jefferson": 0.005,
	}},
	"CT": {defaultRate: 0.0635},
	"DE": {defaultRate: 0},
	"FL": {defaultRate: 0.06, counties: map[string]float64{
		"broward":      0.01,
		"hillsborough": 0.015,
		"miami-dade":   0.01,
		"orange":       0.005,
	}},
	"GA": {defaultRate: 0.04, counties: map[string]float64{
		"fulton":   0.03,
		"gwinnett": 0.02,
		"cobb":     0.02,
	}},
	"HI": {defaultRate: 0.04, counties: map[string]float64{
		"honolulu": 0.005,
	}},
	"ID": {defaultRate: 0.06},
	"IL": {defaultRate: 0.0625, counties: map[string]float64{
		"cook":   0.0275,
		"dupage": 0.0075,
	}},
	"IN": {defaultRate: 0.07},
	"IA": {defaultRate: 0.06, counties: map[string]float64{
		"polk": 0.01,
	}},
	"KS": {defaultRate: 0.065, counties: map[string]float64{
		"johnson":  0.015,
		"sedgwick": 0.01,
	}},
	"KY": {defaultRate: 0.06},
	"LA": {defaultRate: 0.0445, counties: map[string]float64{
		"orleans":          0.05,
		"east baton rouge": 0.055,
	}},
	"ME": {defaultRate: 0.055},
	"MD": {defaultRate: 0.06},
	"MA": {defaultRate: 0.0625},
	"MI": {defaultRate: 0.06},
	"MN": {defaultRate: 0.06875, counties: map[string]float64{
		"hennepin": 0.008,
		"ramsey":   0.0075,
	}},
	"MS": {defaultRate: 0.07},
	"MO": {defaultRate: 0.04225, counties: map[string]float64{
		"st. louis": 0.0345,
		"jackson":   0.0125,
	}},
	"MT": {defaultRate: 0},
	"NE": {defaultRate: 0.055, counties: map[string]float64{
		"douglas":   0.015,
		"lancaster": 0.0175,
	}},
	"NV": {defaultRate: 0.0685, counties: map[string]float64{
		"clark":  0.0138,
		"washoe": 0.0142,
	}},
	"NH": {defaultRate: 0},
	"NJ": {defaultRate: 0.06625},
	"NM": {defaultRate: 0.04875, counties: map[string]float64{
		"bernalillo": 0.02,
	}},
	"NY": {defaultRate: 0.04, counties: map[string]float64{
		"new york":    0.045,
		"kings":       0.045,
		"queens":      0.045,
		"bronx":       0.045,
		"richmond":    0.045,
		"erie":        0.0475,
		"westchester": 0.04375,
	}},
	"NC": {defaultRate: 0.0475, counties: map[string]float64{
		"mecklenburg": 0.025,
		"wake":        0.025,
	}},
	"ND": {defaultRate: 0.05, counties: map[string]float64{
		"cass": 0.005,
	}},
	"OH": {defaultRate: 0.0575, counties: map[string]float64{
		"cuyahoga": 0.0225,
		"franklin": 0.0175,
		"hamilton": 0.0205,
	}},
	"OK": {defaultRate: 0.045, counties: map[string]float64{
		"oklahoma": 0.04,
		"tulsa":    0.0417,
	}},
	"OR": {defaultRate: 0},
	"PA": {defaultRate: 0.06, counties: map[string]float64{
		"philadelphia": 0.02,
		"allegheny":    0.01,
	}},
	"RI": {defaultRate: 0.07},
	"SC": {defaultRate: 0.06, counties: map[string]float64{
		"charleston": 0.03,
		"richland":   0.02,
	}},
	"SD": {defaultRate: 0.042, counties: map[string]float64{
		"minnehaha": 0.02,
	}},
	"TN": {defaultRate: 0.07, counties: map[string]float64{
		"davidson": 0.0225,
		"shelby":   0.0225,
	}},
	"TX": {defaultRate: 0.0625, counties: map[string]float64{
		"bexar":   0.0125,
		"dallas":  0.02,
		"harris":  0.02,
		"tarrant": 0.02,
		"travis":  0.02,
	}},
	"UT": {defaultRate: 0.0485, counties: map[string]float64{
		"salt lake": 0.0235,
		"utah":      0.024,
	}},
	"VT": {defaultRate: 0.06},
	"VA": {defaultRate: 0.043, counties: map[string]float64{
		"fairfax": 0.017,
	}},
	"WA": {defaultRate: 0.065, counties: map[string]float64{
		"king":      0.037,
		"pierce":    0.029,
		"snohomish": 0.04,
		"spokane":   0.024,
	}},
	"WV": {defaultRate: 0.06},
	"WI": {defaultRate: 0.05, counties: map[string]float64{
		"milwaukee": 0.009,
		"dane":      0.005,
	}},
	"WY": {defaultRate: 0.04, counties: map[string]float64{
		"laramie": 0.02,
		"teton":   0.02,
	}},
	"DC": {defaultRate: 0.06},
}
