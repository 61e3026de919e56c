// annotations.go defines the annotation types and parser for the WGSL pre-processor.
// Annotations are single-line WGSL comments prefixed with @vr: that inject shared WGSL
// modules and generate uniform binding declarations from registered structs.
package shader

import (
	"fmt"
	"strconv"
	"strings"
)

// annotationPrefix is the marker that identifies an annotation within a WGSL comment line.
const annotationPrefix = "@vr:"

// AnnotationType identifies the kind of annotation parsed from a WGSL comment line.
type AnnotationType string

const (
	// AnnotationTypeInclude injects the WGSL source of a registered module or struct at
	// the annotation site. A module is injected at most once per Process call.
	//
	// Syntax: //@vr:include <module>
	//
	// Example: //@vr:include ray_bbox_intersection
	AnnotationTypeInclude AnnotationType = "include"

	// AnnotationTypeUniform generates a group 0 var<uniform> declaration whose type is
	// the WGSL type name of a registered struct, and records the declaration.
	//
	// Syntax: //@vr:uniform <binding> <var_name> <struct>
	//
	// Example: //@vr:uniform 0 params shadow_map_uniforms
	AnnotationTypeUniform AnnotationType = "uniform"
)

// Annotation is a parsed @vr: annotation.
type Annotation struct {
	// Type is the annotation kind.
	Type AnnotationType

	// Args are the annotation arguments after the type, in source order.
	Args []string

	// Line is the 1-based source line of the annotation.
	Line int

	// Binding is the binding index for AnnotationTypeUniform, nil otherwise.
	Binding *int
}

// parseAnnotation attempts to parse a single line of WGSL source as an annotation.
// Returns nil with no error for lines that do not contain the annotation prefix.
//
// Parameters:
//   - line: the raw WGSL source line to parse
//   - lineNum: the 1-based line number for error reporting
//
// Returns:
//   - *Annotation: the parsed annotation, or nil if the line is not an annotation
//   - error: a descriptive error if the annotation is malformed
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "//") {
		return nil, nil
	}
	_, after, ok := strings.Cut(trimmed, annotationPrefix)
	if !ok {
		return nil, nil
	}

	args := strings.Fields(after)
	if len(args) == 0 {
		return nil, fmt.Errorf("line %d: empty @vr annotation", lineNum)
	}

	switch AnnotationType(args[0]) {
	case AnnotationTypeInclude:
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @vr:include requires exactly one argument", lineNum)
		}
		return &Annotation{Type: AnnotationTypeInclude, Args: args[1:], Line: lineNum}, nil
	case AnnotationTypeUniform:
		if len(args) != 4 {
			return nil, fmt.Errorf("line %d: @vr:uniform requires binding, variable name and struct", lineNum)
		}
		binding, err := strconv.Atoi(args[1])
		if err != nil || binding < 0 {
			return nil, fmt.Errorf("line %d: invalid binding %q in @vr:uniform", lineNum, args[1])
		}
		return &Annotation{Type: AnnotationTypeUniform, Args: args[2:], Line: lineNum, Binding: &binding}, nil
	default:
		return nil, fmt.Errorf("line %d: unknown @vr annotation type %q", lineNum, args[0])
	}
}
