package rc1shadowmap

import (
	"github.com/Fastiz/cpp-volume-rendering/engine/renderer"
	"github.com/Fastiz/cpp-volume-rendering/engine/renderer/shader"
)

// newTextureCopyKernel builds the debug view that draws the shadow map into the output
// image instead of the rendered volume.
func newTextureCopyKernel(r renderer.Renderer, s shader.Shader, source, output renderer.Texture) (renderer.Kernel, error) {
	desc := renderer.KernelDescriptor{
		Label:  "Shadow Map Debug View",
		Shader: s,
		Bindings: []renderer.Binding{
			{Name: "source", Texture: source},
			{Name: "output", Texture: output},
		},
	}
	if host, ok := hostTextures(source, output); ok {
		src, dst := host[0], host[1]
		sw, sh, _ := src.Size()
		dw, dh, _ := dst.Size()
		desc.Host = func(x, y int) {
			if x >= int(dw) || y >= int(dh) {
				return
			}
			sx := min(x*int(sw)/int(dw), int(sw)-1)
			sy := min(y*int(sh)/int(dh), int(sh)-1)
			layers := src.Load(sx, sy, 0)
			layers[3] = 1
			dst.Store(x, y, layers)
		}
	}
	return r.CreateKernel(desc)
}
