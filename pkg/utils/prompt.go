package utils

import (
	"fmt"
	"os"
	"strings"

	"github.com/AlecAivazis/survey/v2"

	"github.com/picogrid/swarm-defense/pkg/simulation"
)

// EnvPrefix prefixes parameter overrides, e.g. SWARM_FRIENDLY_COUNT.
// SWARM_SKIP_PROMPTS=true answers every prompt from the environment or the default.
const EnvPrefix = "SWARM_"

// Option is one choice in a select prompt
type Option struct {
	Value       string
	Label       string
	Description string
}

// PromptForParameters asks for each parameter in order
func PromptForParameters(params []simulation.Parameter) (map[string]interface{}, error) {
	result := make(map[string]interface{}, len(params))
	for _, param := range params {
		value, err := promptForParameter(param)
		if err != nil {
			return nil, fmt.Errorf("failed to get %s: %w", param.Name, err)
		}
		result[param.Name] = value
	}
	return result, nil
}

// DefaultParameters resolves every parameter without prompting
func DefaultParameters(params []simulation.Parameter) (map[string]interface{}, error) {
	result := make(map[string]interface{}, len(params))
	for _, param := range params {
		value, err := nonInteractive(param)
		if err != nil {
			return nil, err
		}
		if value != nil {
			result[param.Name] = value
		}
	}
	return result, nil
}

// PromptSelect asks the user to pick one option and returns its value
func PromptSelect(message string, options []Option, defaultValue string) (string, error) {
	if len(options) == 0 {
		return "", fmt.Errorf("nothing to choose from")
	}
	labels := make([]string, len(options))
	byLabel := make(map[string]string, len(options))
	defaultLabel := ""
	for i, opt := range options {
		label := opt.Label
		if label == "" {
			label = opt.Value
		}
		if opt.Description != "" {
			label = fmt.Sprintf("%s - %s", label, opt.Description)
		}
		labels[i] = label
		byLabel[label] = opt.Value
		if opt.Value == defaultValue {
			defaultLabel = label
		}
	}
	if defaultLabel == "" {
		defaultLabel = labels[0]
	}

	var picked string
	prompt := &survey.Select{Message: message, Options: labels, Default: defaultLabel}
	if err := survey.AskOne(prompt, &picked); err != nil {
		return "", err
	}
	return byLabel[picked], nil
}

func envValue(param simulation.Parameter) string {
	return os.Getenv(EnvPrefix + strings.ToUpper(param.Name))
}

func nonInteractive(param simulation.Parameter) (interface{}, error) {
	if raw := envValue(param); raw != "" {
		v, err := param.ParseAndCheck(raw)
		if err != nil {
			return nil, fmt.Errorf("%s%s: %w", EnvPrefix, strings.ToUpper(param.Name), err)
		}
		return v, nil
	}
	if param.Default != nil {
		return param.Default, nil
	}
	if param.Required {
		return nil, fmt.Errorf("required parameter %s not provided and no default available", param.Name)
	}
	return nil, nil
}

func promptForParameter(param simulation.Parameter) (interface{}, error) {
	if os.Getenv(EnvPrefix+"SKIP_PROMPTS") == "true" {
		return nonInteractive(param)
	}

	// an environment value becomes the suggested answer
	if raw := envValue(param); raw != "" {
		if parsed, err := param.ParseAndCheck(raw); err == nil {
			param.Default = parsed
		}
	}

	switch param.Type {
	case simulation.TypeInteger, simulation.TypeFloat:
		return promptNumber(param)
	case simulation.TypeString:
		return promptString(param)
	case simulation.TypeBoolean:
		return promptBoolean(param)
	default:
		return nil, fmt.Errorf("unsupported parameter type: %s", param.Type)
	}
}

func promptNumber(param simulation.Parameter) (interface{}, error) {
	validate := func(val interface{}) error {
		_, err := param.ParseAndCheck(val.(string))
		return err
	}

	var answer string
	prompt := &survey.Input{Message: param.Description, Default: param.DefaultText()}
	if err := survey.AskOne(prompt, &answer, survey.WithValidator(survey.ComposeValidators(survey.Required, validate))); err != nil {
		return nil, err
	}
	return param.Parse(answer)
}

func promptString(param simulation.Parameter) (string, error) {
	defaultStr := param.DefaultText()

	var result string
	if len(param.Options) > 0 {
		prompt := &survey.Select{Message: param.Description, Options: param.Options, Default: defaultStr}
		if err := survey.AskOne(prompt, &result); err != nil {
			return "", err
		}
		return result, nil
	}

	var opts []survey.AskOpt
	if param.Required {
		opts = append(opts, survey.WithValidator(survey.Required))
	}
	prompt := &survey.Input{Message: param.Description, Default: defaultStr}
	if err := survey.AskOne(prompt, &result, opts...); err != nil {
		return "", err
	}
	return result, nil
}

func promptBoolean(param simulation.Parameter) (bool, error) {
	defaultBool := false
	switch v := param.Default.(type) {
	case bool:
		defaultBool = v
	case string:
		defaultBool = v == "true" || v == "yes" || v == "1"
	}

	var result bool
	if err := survey.AskOne(&survey.Confirm{Message: param.Description, Default: defaultBool}, &result); err != nil {
		return false, err
	}
	return result, nil
}
