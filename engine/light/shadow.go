package light

// DefaultShadowNear is the near plane of the light's perspective projection.
const DefaultShadowNear float32 = 0.1

// DefaultShadowFar is the far plane of the light's perspective projection.
const DefaultShadowFar float32 = 1000.0

// ShadowLayers is the number of transmittance samples stored per shadow map texel,
// one per RGBA channel.
const ShadowLayers = 4

// ShadowLayerFractions are the depths, as fractions of the light ray's segment inside
// the volume, at which transmittance is recorded.
var ShadowLayerFractions = [ShadowLayers]float32{0.25, 0.5, 0.75, 1.0}

// ShadowTerminationThreshold is the transmittance below which a light ray stops marching.
const ShadowTerminationThreshold float32 = 1e-3
