package shaders

// Fullscreen triangle, uv in [0,1] with the origin bottom-left
const compositeVertexShader = `
#version 430 core

vec2 positions[3] = vec2[](
    vec2(-1.0, -1.0),
    vec2( 3.0, -1.0),
    vec2(-1.0,  3.0)
);

out vec2 uv;

void main() {
    vec2 pos = positions[gl_VertexID];
    uv = pos * 0.5 + 0.5;
    gl_Position = vec4(pos, 0.0, 1.0);
}
`

// Tone-mapped dye, or the palette gradient when no dye is bound
const compositeFragmentShader = `
#version 430 core

in vec2 uv;
out vec4 outColor;

uniform sampler2D density;
uniform int palette;
uniform float aspect;
uniform int hasDensity;

vec3 paletteColor(int id) {
    if (palette == 1) {
        return id == 0 ? vec3(0.2, 0.6, 1.0) : vec3(1.0, 0.4, 0.7);
    }
    return id == 0 ? vec3(1.2, 0.5, 0.2) : vec3(0.1, 0.3, 0.9);
}

void main() {
    if (hasDensity == 1) {
        vec3 dye = texture(density, uv).rgb;
        outColor = vec4(1.0 - exp(-max(dye, vec3(0.0))), 1.0);
        return;
    }

    float t = clamp(0.5 + 0.5 * ((uv.x - 0.5) * aspect + (uv.y - 0.5)), 0.0, 1.0);
    outColor = vec4(mix(paletteColor(0), paletteColor(1), t) * 0.25, 1.0);
}
`
