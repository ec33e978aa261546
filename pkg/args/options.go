package args

import "strings"

// OptionsWithRaw splits a command line of the form
//
//	-opt1 -opt2 value -- raw text
//
// into a parsed option prefix and an unparsed raw suffix. The delimiter is
// an unquoted "--" argument.
type OptionsWithRaw struct {
	args                   Args
	hasArgs                bool
	argStringWithDelimiter string
	suffix                 string
}

// ParseOptionsWithRaw parses argString.
func ParseOptionsWithRaw(argString string) *OptionsWithRaw {
	o := &OptionsWithRaw{}
	o.SetFromString(argString)
	return o
}

// SetFromString parses argString replacing the current contents of o.
func (o *OptionsWithRaw) SetFromString(argString string) {
	*o = OptionsWithRaw{}
	original := argString
	argString = strings.TrimLeft(argString, separators)

	// Without a leading dash there are no options, only a raw part.
	if !strings.HasPrefix(argString, "-") {
		o.suffix = original
		return
	}

	for argString != "" {
		prefixLen := len(original) - len(argString)
		var e Entry
		e.Text, e.Quote, argString = parseSingleArgument(argString)
		if !e.IsQuoted() && e.Text == "--" {
			o.hasArgs = true
			o.suffix = argString
			o.args.SetCommandString(original[:prefixLen])
			o.argStringWithDelimiter = original[:prefixLen+2]
			return
		}
	}

	o.suffix = original
}

// HasArgs returns true if a delimiter was found and the prefix was parsed
// as arguments.
func (o *OptionsWithRaw) HasArgs() bool {
	return o.hasArgs
}

// Args returns the parsed option prefix. It is empty unless HasArgs is true.
func (o *OptionsWithRaw) Args() *Args {
	return &o.args
}

// ArgStringWithDelimiter returns the text of the option prefix including
// the "--" delimiter.
func (o *OptionsWithRaw) ArgStringWithDelimiter() string {
	return o.argStringWithDelimiter
}

// HasRawSuffix returns true if there is a non-empty raw suffix.
func (o *OptionsWithRaw) HasRawSuffix() bool {
	return o.suffix != ""
}

// RawSuffix returns the unparsed part of the command line.
func (o *OptionsWithRaw) RawSuffix() string {
	return o.suffix
}
