package cmd

import "github.com/charmbracelet/huh"

// runForm runs the fields as one group with the key help line shown.
func runForm(fields ...huh.Field) error {
	return huh.NewForm(huh.NewGroup(fields...)).WithShowHelp(true).Run()
}

// promptString asks for a line of text. The current value is pre-filled and
// can be edited; an empty answer keeps defaultVal.
func promptString(title, description, defaultVal string) (string, error) {
	value := defaultVal
	inp := huh.NewInput().Title(title).Value(&value)
	if description != "" {
		inp = inp.Description(description)
	}
	if err := runForm(inp); err != nil {
		return "", err
	}
	if value == "" {
		return defaultVal, nil
	}
	return value, nil
}

// promptPassword asks for a secret with hidden echo. Empty means "keep".
func promptPassword(title, description string) (string, error) {
	var value string
	inp := huh.NewInput().
		Title(title).
		EchoMode(huh.EchoModePassword).
		Value(&value)
	if description != "" {
		inp = inp.Description(description)
	}
	if err := runForm(inp); err != nil {
		return "", err
	}
	return value, nil
}

// SelectOption is one choice of a select prompt.
type SelectOption[T any] struct {
	Label string
	Value T
}

// promptSelect shows a single-select list and returns the chosen value.
func promptSelect[T comparable](title string, options []SelectOption[T], defaultIdx int) (T, error) {
	var value T
	opts := make([]huh.Option[T], len(options))
	for i, o := range options {
		opts[i] = huh.NewOption(o.Label, o.Value).Selected(i == defaultIdx)
	}

	sel := huh.NewSelect[T]().Title(title).Options(opts...).Value(&value)
	if err := runForm(sel); err != nil {
		var zero T
		return zero, err
	}
	return value, nil
}

// promptConfirm asks a yes/no question.
func promptConfirm(title string, defaultYes bool) (bool, error) {
	value := defaultYes
	c := huh.NewConfirm().
		Title(title).
		Affirmative("Yes").
		Negative("No").
		Value(&value)
	if err := runForm(c); err != nil {
		return false, err
	}
	return value, nil
}
