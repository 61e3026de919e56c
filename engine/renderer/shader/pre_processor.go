// pre_processor.go implements the WGSL pre-processor. It scans shader source for @vr:
// annotations, injects registered WGSL modules and struct definitions, and generates
// uniform binding declarations so that kernels share one copy of common routines
// such as the ray/box intersection.
package shader

import (
	"fmt"
	"strings"
)

// registryEntry pairs a WGSL source fragment with the type name it declares, if any.
type registryEntry struct {
	// Source is the raw WGSL text injected by @vr:include.
	Source string

	// Type is the WGSL struct name used by @vr:uniform. Empty for function modules.
	Type string
}

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	registry     map[string]registryEntry
	declarations []Annotation
}

// PreProcessor processes raw WGSL shader source code containing @vr: annotations,
// replacing them with registered WGSL text or generated declarations.
type PreProcessor interface {
	// Register adds a WGSL module to the include registry. A non-empty typeName marks the
	// module as a struct usable by @vr:uniform.
	//
	// Parameters:
	//   - name: the include key used in annotations
	//   - source: the WGSL text to inject
	//   - typeName: the WGSL struct name declared by source, or "" for function modules
	Register(name, source, typeName string)

	// Process replaces @vr: annotations in source with their WGSL output. Each registered
	// module is injected at most once, so includes may be repeated safely.
	//
	// Parameters:
	//   - source: the raw WGSL source code containing annotations
	//
	// Returns:
	//   - string: the processed WGSL source
	//   - error: an error if an annotation is malformed or references an unknown module
	Process(source string) (string, error)

	// Declarations returns the @vr:uniform annotations collected during the last Process call.
	//
	// Returns:
	//   - []Annotation: the uniform declarations in source order
	Declarations() []Annotation
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a PreProcessor with an empty registry.
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor instance
func NewPreProcessor() PreProcessor {
	return &preProcessor{
		registry: make(map[string]registryEntry),
	}
}

func (p *preProcessor) Register(name, source, typeName string) {
	p.registry[name] = registryEntry{Source: source, Type: typeName}
}

func (p *preProcessor) Process(source string) (string, error) {
	p.declarations = p.declarations[:0]
	return p.process(source, make(map[string]bool), 0)
}

func (p *preProcessor) process(source string, included map[string]bool, depth int) (string, error) {
	if depth > 8 {
		return "", fmt.Errorf("include nesting deeper than 8 levels")
	}

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}
		if a == nil {
			out = append(out, line)
			continue
		}

		switch a.Type {
		case AnnotationTypeInclude:
			name := a.Args[0]
			entry, ok := p.registry[name]
			if !ok {
				return "", fmt.Errorf("line %d: unknown @vr:include module %q", a.Line, name)
			}
			if included[name] {
				continue
			}
			included[name] = true
			// included modules may include others
			expanded, err := p.process(entry.Source, included, depth+1)
			if err != nil {
				return "", fmt.Errorf("include %s: %w", name, err)
			}
			out = append(out, expanded)
		case AnnotationTypeUniform:
			varName, structName := a.Args[0], a.Args[1]
			entry, ok := p.registry[structName]
			if !ok || entry.Type == "" {
				return "", fmt.Errorf("line %d: @vr:uniform references unknown struct %q", a.Line, structName)
			}
			if !included[structName] {
				included[structName] = true
				out = append(out, entry.Source)
			}
			out = append(out, fmt.Sprintf("@group(0) @binding(%d) var<uniform> %s: %s;", *a.Binding, varName, entry.Type))
			p.declarations = append(p.declarations, *a)
		}
	}
	return strings.Join(out, "\n"), nil
}

func (p *preProcessor) Declarations() []Annotation {
	return p.declarations
}
