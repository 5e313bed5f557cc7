// Package file provides file-based implementations of driven port interfaces.
//
// Adapters:
//   - ConfigStore: TOML settings stored at <vault>/config.toml
//   - PromptStore: user-editable answer prompts under <vault>/prompts
package file
