package choice

// Rule is one entry of a Choice state's Choices list, or a nested rule under
// Not, And and Or. Comparator fields are pointers so that a zero operand such
// as false or 0 still counts as present.
type Rule struct {
	Variable string `json:"Variable,omitempty"`
	Next     string `json:"Next,omitempty"`

	// Expression dialect
	Condition any            `json:"Condition,omitempty"`
	Assign    map[string]any `json:"Assign,omitempty"`
	Output    any            `json:"Output,omitempty"`

	Not *Rule  `json:"Not,omitempty"`
	Or  []Rule `json:"Or,omitempty"`
	And []Rule `json:"And,omitempty"`

	StringEquals    *string  `json:"StringEquals,omitempty"`
	NumericEquals   *float64 `json:"NumericEquals,omitempty"`
	BooleanEquals   *bool    `json:"BooleanEquals,omitempty"`
	TimestampEquals *string  `json:"TimestampEquals,omitempty"`

	StringEqualsPath    *string `json:"StringEqualsPath,omitempty"`
	NumericEqualsPath   *string `json:"NumericEqualsPath,omitempty"`
	BooleanEqualsPath   *string `json:"BooleanEqualsPath,omitempty"`
	TimestampEqualsPath *string `json:"TimestampEqualsPath,omitempty"`

	StringLessThan    *string  `json:"StringLessThan,omitempty"`
	NumericLessThan   *float64 `json:"NumericLessThan,omitempty"`
	TimestampLessThan *string  `json:"TimestampLessThan,omitempty"`

	StringLessThanPath    *string `json:"StringLessThanPath,omitempty"`
	NumericLessThanPath   *string `json:"NumericLessThanPath,omitempty"`
	TimestampLessThanPath *string `json:"TimestampLessThanPath,omitempty"`

	StringLessThanEquals    *string  `json:"StringLessThanEquals,omitempty"`
	NumericLessThanEquals   *float64 `json:"NumericLessThanEquals,omitempty"`
	TimestampLessThanEquals *string  `json:"TimestampLessThanEquals,omitempty"`

	StringLessThanEqualsPath    *string `json:"StringLessThanEqualsPath,omitempty"`
	NumericLessThanEqualsPath   *string `json:"NumericLessThanEqualsPath,omitempty"`
	TimestampLessThanEqualsPath *string `json:"TimestampLessThanEqualsPath,omitempty"`

	StringGreaterThan    *string  `json:"StringGreaterThan,omitempty"`
	NumericGreaterThan   *float64 `json:"NumericGreaterThan,omitempty"`
	TimestampGreaterThan *string  `json:"TimestampGreaterThan,omitempty"`

	StringGreaterThanPath    *string `json:"StringGreaterThanPath,omitempty"`
	NumericGreaterThanPath   *string `json:"NumericGreaterThanPath,omitempty"`
	TimestampGreaterThanPath *string `json:"TimestampGreaterThanPath,omitempty"`

	StringGreaterThanEquals    *string  `json:"StringGreaterThanEquals,omitempty"`
	NumericGreaterThanEquals   *float64 `json:"NumericGreaterThanEquals,omitempty"`
	TimestampGreaterThanEquals *string  `json:"TimestampGreaterThanEquals,omitempty"`

	StringGreaterThanEqualsPath    *string `json:"StringGreaterThanEqualsPath,omitempty"`
	NumericGreaterThanEqualsPath   *string `json:"NumericGreaterThanEqualsPath,omitempty"`
	TimestampGreaterThanEqualsPath *string `json:"TimestampGreaterThanEqualsPath,omitempty"`

	IsNull      *bool `json:"IsNull,omitempty"`
	IsPresent   *bool `json:"IsPresent,omitempty"`
	IsNumeric   *bool `json:"IsNumeric,omitempty"`
	IsString    *bool `json:"IsString,omitempty"`
	IsBoolean   *bool `json:"IsBoolean,omitempty"`
	IsTimestamp *bool `json:"IsTimestamp,omitempty"`

	StringMatches *string `json:"StringMatches,omitempty"`
}

type operator int

const (
	opEquals operator = iota
	opLessThan
	opLessThanEquals
	opGreaterThan
	opGreaterThanEquals
)

type kind int

const (
	kindString kind = iota
	kindNumeric
	kindBoolean
	kindTimestamp
)

// comparison is the single comparator a rule resolves to.
type comparison struct {
	op     operator
	kind   kind
	value  any
	path   string
	byPath bool
	set    bool
}

func str(op operator, k kind, p *string) comparison {
	if p == nil {
		return comparison{}
	}
	return comparison{op: op, kind: k, value: *p, set: true}
}

func num(op operator, p *float64) comparison {
	if p == nil {
		return comparison{}
	}
	return comparison{op: op, kind: kindNumeric, value: *p, set: true}
}

func boolean(op operator, p *bool) comparison {
	if p == nil {
		return comparison{}
	}
	return comparison{op: op, kind: kindBoolean, value: *p, set: true}
}

func path(op operator, k kind, p *string) comparison {
	if p == nil {
		return comparison{}
	}
	return comparison{op: op, kind: k, path: *p, byPath: true, set: true}
}

// comparison returns the first comparator set on the rule, checked group by
// group. Later fields are ignored when more than one is present.
func (r *Rule) comparison() (comparison, bool) {
	candidates := []comparison{
		str(opEquals, kindString, r.StringEquals),
		num(opEquals, r.NumericEquals),
		boolean(opEquals, r.BooleanEquals),
		str(opEquals, kindTimestamp, r.TimestampEquals),

		path(opEquals, kindString, r.StringEqualsPath),
		path(opEquals, kindNumeric, r.NumericEqualsPath),
		path(opEquals, kindBoolean, r.BooleanEqualsPath),
		path(opEquals, kindTimestamp, r.TimestampEqualsPath),

		str(opLessThan, kindString, r.StringLessThan),
		num(opLessThan, r.NumericLessThan),
		str(opLessThan, kindTimestamp, r.TimestampLessThan),
		path(opLessThan, kindString, r.StringLessThanPath),
		path(opLessThan, kindNumeric, r.NumericLessThanPath),
		path(opLessThan, kindTimestamp, r.TimestampLessThanPath),

		str(opLessThanEquals, kindString, r.StringLessThanEquals),
		num(opLessThanEquals, r.NumericLessThanEquals),
		str(opLessThanEquals, kindTimestamp, r.TimestampLessThanEquals),
		path(opLessThanEquals, kindString, r.StringLessThanEqualsPath),
		path(opLessThanEquals, kindNumeric, r.NumericLessThanEqualsPath),
		path(opLessThanEquals, kindTimestamp, r.TimestampLessThanEqualsPath),

		str(opGreaterThan, kindString, r.StringGreaterThan),
		num(opGreaterThan, r.NumericGreaterThan),
		str(opGreaterThan, kindTimestamp, r.TimestampGreaterThan),
		path(opGreaterThan, kindString, r.StringGreaterThanPath),
		path(opGreaterThan, kindNumeric, r.NumericGreaterThanPath),
		path(opGreaterThan, kindTimestamp, r.TimestampGreaterThanPath),

		str(opGreaterThanEquals, kindString, r.StringGreaterThanEquals),
		num(opGreaterThanEquals, r.NumericGreaterThanEquals),
		str(opGreaterThanEquals, kindTimestamp, r.TimestampGreaterThanEquals),
		path(opGreaterThanEquals, kindString, r.StringGreaterThanEqualsPath),
		path(opGreaterThanEquals, kindNumeric, r.NumericGreaterThanEqualsPath),
		path(opGreaterThanEquals, kindTimestamp, r.TimestampGreaterThanEqualsPath),
	}

	for _, c := range candidates {
		if c.set {
			return c, true
		}
	}
	return comparison{}, false
}
