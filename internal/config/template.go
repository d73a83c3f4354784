package config

import (
	"fmt"
	"sort"
)

// templates are the built-in named command shapes a profile's "command"
// block may reference instead of spelling out an executable and argument
// vector, in the spirit of the teacher's built-in profile templates
// (the teacher ships named profile templates like "npm-install" and
// "ai-coding-agents").
// These are plain Go values rather than an embed.FS table since the
// payload shape here is a short fixed argument list, not a reusable JSON
// document.
var templates = map[string]CommandSpec{
	"bash": {Executable: "/bin/bash", Args: []string{"-il"}},
	"sh":   {Executable: "/bin/sh", Args: []string{"-i"}},
	"node": {Executable: "/usr/bin/node", Args: nil},
}

// ResolveTemplate returns the CommandSpec a named built-in template
// expands to. Args from spec, if any, are appended after the template's
// own arguments, and spec.Executable overrides the template's default
// when set.
func ResolveTemplate(spec CommandSpec) (CommandSpec, error) {
	if spec.Template == "" {
		return spec, nil
	}
	tmpl, ok := templates[spec.Template]
	if !ok {
		return spec, fmt.Errorf("config: unknown command template %q", spec.Template)
	}

	resolved := tmpl
	if spec.Executable != "" {
		resolved.Executable = spec.Executable
	}
	if len(spec.Args) > 0 {
		resolved.Args = append(append([]string{}, tmpl.Args...), spec.Args...)
	}
	return resolved, nil
}

// TemplateNames lists the built-in template names, sorted.
func TemplateNames() []string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// sandboxTemplates are the built-in named bwrap argument lists a
// profile's "sandbox" block may reference instead of spelling out a full
// bwrap argument vector. original_source/src/config/template.rs renders
// these from a named handlebars/minijinja template file; this repo's
// profile grammar is flat JSON rather than a template engine, so the
// equivalent shortcut is a small fixed table of argument lists instead
// of a rendered string (see DESIGN.md's Open Questions).
var sandboxTemplates = map[string][]string{
	"minimal": {
		"--ro-bind", "/", "/",
		"--proc", "/proc",
		"--dev", "/dev",
		"--unshare-all",
		"--die-with-parent",
	},
	"networked": {
		"--ro-bind", "/", "/",
		"--proc", "/proc",
		"--dev", "/dev",
		"--unshare-all",
		"--share-net",
		"--die-with-parent",
	},
}

// ResolveSandboxArgs returns the bwrap argument list a profile's "sandbox"
// block expands to: the named template's own arguments (if any) followed
// by spec.Args.
func ResolveSandboxArgs(spec BwrapArgsSpec) ([]string, error) {
	if spec.Template == "" {
		return spec.Args, nil
	}
	tmpl, ok := sandboxTemplates[spec.Template]
	if !ok {
		return nil, fmt.Errorf("config: unknown sandbox template %q", spec.Template)
	}
	return append(append([]string{}, tmpl...), spec.Args...), nil
}

// SandboxTemplateNames lists the built-in sandbox template names, sorted.
func SandboxTemplateNames() []string {
	names := make([]string, 0, len(sandboxTemplates))
	for name := range sandboxTemplates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
