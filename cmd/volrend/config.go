package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Fastiz/cpp-volume-rendering/engine/camera"
	"github.com/Fastiz/cpp-volume-rendering/engine/frame"
	"github.com/Fastiz/cpp-volume-rendering/engine/light"
	"github.com/Fastiz/cpp-volume-rendering/engine/renderer"
	"github.com/Fastiz/cpp-volume-rendering/engine/rendering_parameters"
	"github.com/Fastiz/cpp-volume-rendering/engine/technique/rc1shadowmap"
	"github.com/Fastiz/cpp-volume-rendering/engine/transfer_function"
	"github.com/Fastiz/cpp-volume-rendering/engine/volume"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

type VolumeCfg struct {
	// Source is "sphere", "gaussian" or "raw".
	Source     string     `json:"source"`
	Path       string     `json:"path,omitempty"`
	Resolution [3]int     `json:"resolution,omitempty"`
	Format     string     `json:"format,omitempty"`
	VoxelSize  [3]float32 `json:"voxelSize,omitempty"`
	Scale      [3]float32 `json:"scale,omitempty"`
	// Size, Radius and Sigma configure the synthetic sources.
	Size   int     `json:"size,omitempty"`
	Radius float32 `json:"radius,omitempty"`
	Sigma  float32 `json:"sigma,omitempty"`
}

type TransferFunctionCfg struct {
	Path   string                           `json:"path,omitempty"`
	Points []transfer_function.ControlPoint `json:"points,omitempty"`
}

type CameraCfg struct {
	// Distance is the orbit radius in multiples of the volume's bounding-box diagonal.
	Distance     float32 `json:"distance,omitempty"`
	AzimuthDeg   float32 `json:"azimuthDeg"`
	ElevationDeg float32 `json:"elevationDeg"`
	FovDeg       float32 `json:"fovDeg,omitempty"`
	// OrbitDegPerFrame rotates the camera between headless frames.
	OrbitDegPerFrame float32 `json:"orbitDegPerFrame,omitempty"`
}

type LightCfg struct {
	// Position overrides the default light above the volume.
	Position *[3]float32 `json:"position,omitempty"`
	// Distance places the default light this many diagonals above the volume center.
	Distance          float32    `json:"distance,omitempty"`
	Color             [3]float32 `json:"color,omitempty"`
	SpecularIntensity float32    `json:"specularIntensity,omitempty"`
	// FovDeg and Aspect set an independent light frustum; zero follows the camera.
	FovDeg float32 `json:"fovDeg,omitempty"`
	Aspect float32 `json:"aspect,omitempty"`
}

type Config struct {
	Volume           VolumeCfg                        `json:"volume"`
	TransferFunction TransferFunctionCfg              `json:"transferFunction"`
	Camera           CameraCfg                        `json:"camera"`
	Light            LightCfg                         `json:"light"`
	Shading          *rendering_parameters.BlinnPhong `json:"shading,omitempty"`
	Background       [4]float32                       `json:"background"`

	StepSize        float32 `json:"stepSize,omitempty"`
	Shadow          *bool   `json:"shadow,omitempty"`
	Occlusion       *bool   `json:"occlusion,omitempty"`
	GradientShading bool    `json:"gradientShading,omitempty"`
	DebugShadowMap  bool    `json:"debugShadowMap,omitempty"`
	ShaderDir       string  `json:"shaderDir,omitempty"`

	Width  int    `json:"width"`
	Height int    `json:"height"`
	Mode   string `json:"mode,omitempty"`
	// Backend is "cpu" or "wgpu".
	Backend string `json:"backend"`
	Workers int    `json:"workers,omitempty"`

	// Output is "png", "serve" or "window".
	Output string `json:"output"`
	// PNG is the frame path pattern for png output, formatted with the frame index.
	PNG    string `json:"png,omitempty"`
	Addr   string `json:"addr,omitempty"`
	Frames int    `json:"frames,omitempty"`
	FPS    int    `json:"fps,omitempty"`

	Profile bool `json:"profile,omitempty"`
}

// DefaultConfig renders four frames of a lit sphere to PNG on the CPU.
func DefaultConfig() Config {
	return Config{
		Volume: VolumeCfg{Source: "sphere", Size: 64, Radius: 0.6},
		Camera: CameraCfg{Distance: 1.5, ElevationDeg: 20, FovDeg: 45},
		Light:  LightCfg{Distance: 1.5, Color: [3]float32{1, 1, 1}, SpecularIntensity: 1},

		Width:   512,
		Height:  512,
		Backend: "cpu",
		Output:  "png",
		PNG:     "frame_%03d.png",
		Addr:    ":8080",
		Frames:  4,
		FPS:     30,
	}
}

// LoadConfig reads a JSON config over the defaults, then applies VOLREND_* environment
// overrides. An empty path uses the defaults alone.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// applyEnv overrides fields from environment variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"VOLREND_OUTPUT":     &c.Output,
		"VOLREND_BACKEND":    &c.Backend,
		"VOLREND_MODE":       &c.Mode,
		"VOLREND_PNG":        &c.PNG,
		"VOLREND_ADDR":       &c.Addr,
		"VOLREND_SHADER_DIR": &c.ShaderDir,
		"VOLREND_VOLUME":     &c.Volume.Source,
		"VOLREND_RAW":        &c.Volume.Path,
		"VOLREND_TF":         &c.TransferFunction.Path,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	ints := map[string]*int{
		"VOLREND_WIDTH":   &c.Width,
		"VOLREND_HEIGHT":  &c.Height,
		"VOLREND_FRAMES":  &c.Frames,
		"VOLREND_FPS":     &c.FPS,
		"VOLREND_WORKERS": &c.Workers,
	}
	for key, dst := range ints {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("config: %s: %w", key, err)
			}
			*dst = n
		}
	}
	if v, ok := lookup("VOLREND_STEP"); ok {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return fmt.Errorf("config: VOLREND_STEP: %w", err)
		}
		c.StepSize = float32(f)
	}
	bools := map[string]*bool{
		"VOLREND_DEBUG_SHADOW_MAP": &c.DebugShadowMap,
		"VOLREND_GRADIENT_SHADING": &c.GradientShading,
		"VOLREND_PROFILE":          &c.Profile,
	}
	for key, dst := range bools {
		if v, ok := lookup(key); ok {
			*dst = v != "" && v != "0" && !strings.EqualFold(v, "false")
		}
	}
	return nil
}

// Validate checks the fields that have no safe fallback.
func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("config: invalid size %dx%d", c.Width, c.Height)
	}
	switch c.Output {
	case "png", "serve", "window":
	default:
		return fmt.Errorf("config: unknown output %q", c.Output)
	}
	if _, err := c.backendType(); err != nil {
		return err
	}
	if c.Output == "window" && c.Backend != "wgpu" {
		return fmt.Errorf("config: window output needs the wgpu backend")
	}
	if _, err := frame.ParseMode(c.Mode); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Output == "png" && c.Frames <= 0 {
		return fmt.Errorf("config: png output needs at least one frame")
	}
	return nil
}

func (c Config) backendType() (renderer.RendererBackendType, error) {
	switch strings.ToLower(c.Backend) {
	case "cpu", "":
		return renderer.BackendTypeCPU, nil
	case "wgpu", "gpu":
		return renderer.BackendTypeWGPU, nil
	}
	return 0, fmt.Errorf("config: unknown backend %q", c.Backend)
}

// BuildVolume loads or generates the configured volume.
func (c Config) BuildVolume() (volume.StructuredVolume, error) {
	var opts []volume.VolumeBuilderOption
	if v := c.Volume.VoxelSize; v != ([3]float32{}) {
		opts = append(opts, volume.WithVoxelSize(v[0], v[1], v[2]))
	}
	if s := c.Volume.Scale; s != ([3]float32{}) {
		opts = append(opts, volume.WithScale(s[0], s[1], s[2]))
	}

	switch strings.ToLower(c.Volume.Source) {
	case "sphere", "":
		radius := c.Volume.Radius
		if radius == 0 {
			radius = 0.6
		}
		return volume.NewSphere(sizeOr(c.Volume.Size, 64), radius, opts...)
	case "gaussian":
		sigma := c.Volume.Sigma
		if sigma == 0 {
			sigma = 0.35
		}
		return volume.NewGaussian(sizeOr(c.Volume.Size, 64), sigma, opts...)
	case "raw":
		format, err := volume.ParseDataFormat(c.Volume.Format)
		if err != nil {
			return nil, err
		}
		return volume.LoadRawFile(c.Volume.Path, c.Volume.Resolution, format, opts...)
	}
	return nil, fmt.Errorf("config: unknown volume source %q", c.Volume.Source)
}

func sizeOr(n, fallback int) int {
	if n > 0 {
		return n
	}
	return fallback
}

// BuildTransferFunction returns the configured transfer function, or nil to let the data
// manager use its default.
func (c Config) BuildTransferFunction() (transfer_function.TransferFunction, error) {
	switch {
	case c.TransferFunction.Path != "":
		return transfer_function.LoadFile(c.TransferFunction.Path)
	case len(c.TransferFunction.Points) > 0:
		return transfer_function.New(c.TransferFunction.Points, transfer_function.WithName("config"))
	}
	return nil, nil
}

// boxCenterAndDiagonal returns the center and diagonal length of the volume's world box.
func boxCenterAndDiagonal(vol volume.StructuredVolume) (mgl32.Vec3, float32) {
	lo, hi := vol.BoxMin(), vol.BoxMax()
	return lo.Add(hi).Mul(0.5), hi.Sub(lo).Len()
}

// BuildLight places the light from the config, by default above the volume looking down.
func (c Config) BuildLight(vol volume.StructuredVolume) light.Light {
	center, diagonal := boxCenterAndDiagonal(vol)
	position := center.Add(mgl32.Vec3{0, diagonal * orDefault(c.Light.Distance, 1.5), 0})
	if p := c.Light.Position; p != nil {
		position = mgl32.Vec3{p[0], p[1], p[2]}
	}
	opts := []light.LightBuilderOption{light.WithLookAt(position, center)}
	if col := c.Light.Color; col != ([3]float32{}) {
		opts = append(opts, light.WithColor(mgl32.Vec3{col[0], col[1], col[2]}))
	}
	if c.Light.SpecularIntensity > 0 {
		opts = append(opts, light.WithSpecularIntensity(c.Light.SpecularIntensity))
	}
	if c.Light.FovDeg > 0 {
		aspect := orDefault(c.Light.Aspect, 1)
		opts = append(opts, light.WithLightFrustum(mgl32.DegToRad(c.Light.FovDeg), aspect))
	}
	return light.NewLight(opts...)
}

// BuildCamera creates an orbit camera around the volume center.
func (c Config) BuildCamera(vol volume.StructuredVolume) camera.Camera {
	center, diagonal := boxCenterAndDiagonal(vol)
	controller := camera.NewCameraController(
		camera.WithTarget(center),
		camera.WithRadiusBounds(0.05*diagonal, 20*diagonal),
		camera.WithRadius(diagonal*orDefault(c.Camera.Distance, 1.5)),
		camera.WithAzimuth(mgl32.DegToRad(c.Camera.AzimuthDeg)),
		camera.WithElevation(mgl32.DegToRad(c.Camera.ElevationDeg)),
	)
	return camera.NewCamera(
		camera.WithController(controller),
		camera.WithFovY(mgl32.DegToRad(orDefault(c.Camera.FovDeg, 45))),
		camera.WithAspect(float32(c.Width)/float32(c.Height)),
		camera.WithNear(0.01*diagonal),
		camera.WithFar(50*diagonal),
	)
}

// BuildRenderingParameters collects light, shading, screen size, mode and background.
func (c Config) BuildRenderingParameters(l light.Light) rendering_parameters.RenderingParameters {
	mode, _ := frame.ParseMode(c.Mode)
	opts := []rendering_parameters.RenderingParametersBuilderOption{
		rendering_parameters.WithLight(l),
		rendering_parameters.WithScreenSize(c.Width, c.Height),
		rendering_parameters.WithMultiscalingMode(mode),
		rendering_parameters.WithBackground(mgl32.Vec4(c.Background)),
	}
	if c.Shading != nil {
		opts = append(opts, rendering_parameters.WithBlinnPhong(*c.Shading))
	}
	return rendering_parameters.NewRenderingParameters(opts...)
}

// TechniqueOptions translates the technique flags.
func (c Config) TechniqueOptions() []rc1shadowmap.RC1ShadowMapBuilderOption {
	opts := []rc1shadowmap.RC1ShadowMapBuilderOption{
		rc1shadowmap.WithGradientShading(c.GradientShading),
		rc1shadowmap.WithDebugShadowMap(c.DebugShadowMap),
	}
	if c.Shadow != nil {
		opts = append(opts, rc1shadowmap.WithShadow(*c.Shadow))
	}
	if c.Occlusion != nil {
		opts = append(opts, rc1shadowmap.WithOcclusion(*c.Occlusion))
	}
	if c.StepSize > 0 {
		opts = append(opts, rc1shadowmap.WithStepSize(c.StepSize))
	}
	if c.ShaderDir != "" {
		opts = append(opts, rc1shadowmap.WithShaderDir(c.ShaderDir))
	}
	return opts
}

func orDefault(v, fallback float32) float32 {
	if v > 0 {
		return v
	}
	return fallback
}

// orbitStep returns the per-frame azimuth increment in radians.
func (c Config) orbitStep() float32 {
	return c.Camera.OrbitDegPerFrame * math32.Pi / 180
}
