package rc1shadowmap

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Fastiz/cpp-volume-rendering/engine/renderer/shader"
)

//go:embed shaders/*.wgsl
var embeddedShaders embed.FS

const (
	shadowMapShaderFile   = "shadow_map.wgsl"
	rayMarchingShaderFile = "ray_marching.wgsl"
	textureCopyShaderFile = "texture_copy.wgsl"
)

// includeModules are the WGSL files injected by //@vr:include, keyed by module name.
var includeModules = map[string]string{
	"ray_bbox_intersection": "ray_bbox_intersection.wgsl",
	"volume_sampling":       "volume_sampling.wgsl",
}

// shaderSet holds the parsed compute shaders of the technique.
type shaderSet struct {
	shadowMap   shader.Shader
	rayMarching shader.Shader
	textureCopy shader.Shader
}

// readShaderSource reads a WGSL file from dir, or from the embedded copies when dir is empty.
func readShaderSource(dir, name string) (string, error) {
	var (
		data []byte
		err  error
	)
	if dir != "" {
		data, err = os.ReadFile(filepath.Join(dir, name))
	} else {
		data, err = embeddedShaders.ReadFile("shaders/" + name)
	}
	if err != nil {
		return "", fmt.Errorf("read shader %s: %w", name, err)
	}
	return string(data), nil
}

// newPreProcessor registers the shared WGSL modules and uniform structs.
func newPreProcessor(dir string) (shader.PreProcessor, error) {
	pp := shader.NewPreProcessor()
	for name, file := range includeModules {
		src, err := readShaderSource(dir, file)
		if err != nil {
			return nil, err
		}
		pp.Register(name, src, "")
	}
	pp.Register("shadow_map_uniforms", GPUShadowMapUniformsSource, "ShadowMapUniforms")
	pp.Register("ray_marching_uniforms", GPURayMarchingUniformsSource, "RayMarchingUniforms")
	return pp, nil
}

// loadShaders reads and parses every kernel shader of the technique.
//
// Parameters:
//   - dir: a directory to read WGSL from, or "" for the embedded sources
//
// Returns:
//   - shaderSet: the parsed shaders
//   - error: a read or pre-processing error
func loadShaders(dir string) (shaderSet, error) {
	pp, err := newPreProcessor(dir)
	if err != nil {
		return shaderSet{}, err
	}

	load := func(key, file string) (shader.Shader, error) {
		src, err := readShaderSource(dir, file)
		if err != nil {
			return nil, err
		}
		return shader.NewShaderFromSource(key, shader.ShaderTypeCompute, src, pp)
	}

	var set shaderSet
	if set.shadowMap, err = load("s_1rc shadow map", shadowMapShaderFile); err != nil {
		return shaderSet{}, err
	}
	if set.rayMarching, err = load("s_1rc ray marching", rayMarchingShaderFile); err != nil {
		return shaderSet{}, err
	}
	if set.textureCopy, err = load("s_1rc texture copy", textureCopyShaderFile); err != nil {
		return shaderSet{}, err
	}
	return set, nil
}
