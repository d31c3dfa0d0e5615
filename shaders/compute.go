package shaders

// Every compute kernel runs in 8x8 work groups over the full grid and
// writes image unit 0. Neighbour reads clamp to the edge.

// Semi-Lagrangian advection of src by velocity
const advectShader = `
#version 430 core

layout(local_size_x = 8, local_size_y = 8) in;

layout(binding = 0, rgba32f) uniform writeonly image2D dst;
layout(binding = 1, rgba32f) uniform readonly image2D src;
layout(binding = 2, rgba32f) uniform readonly image2D velocity;

uniform float timestep;
uniform float dissipation;

vec4 fetchSrc(ivec2 p) {
    return imageLoad(src, clamp(p, ivec2(0), imageSize(dst) - 1));
}

vec4 bilerp(vec2 pos) {
    vec2 base = floor(pos);
    vec2 f = pos - base;
    ivec2 i = ivec2(base);
    vec4 a = fetchSrc(i);
    vec4 b = fetchSrc(i + ivec2(1, 0));
    vec4 c = fetchSrc(i + ivec2(0, 1));
    vec4 d = fetchSrc(i + ivec2(1, 1));
    return mix(mix(a, b, f.x), mix(c, d, f.x), f.y);
}

void main() {
    ivec2 coord = ivec2(gl_GlobalInvocationID.xy);
    ivec2 size = imageSize(dst);
    if (coord.x >= size.x || coord.y >= size.y) return;

    vec2 vel = imageLoad(velocity, coord).xy;
    vec2 pos = clamp(vec2(coord) - timestep * vel, vec2(-1.0), vec2(size));
    imageStore(dst, coord, dissipation * bilerp(pos));
}
`

// Gaussian injection of velocity (xy) or dye (rgb + coverage in a)
const splatShader = `
#version 430 core

layout(local_size_x = 8, local_size_y = 8) in;

layout(binding = 0, rgba32f) uniform writeonly image2D dst;
layout(binding = 1, rgba32f) uniform readonly image2D src;

uniform vec2 point;
uniform vec2 delta;
uniform vec3 color;
uniform float radius;
uniform float aspect;
uniform int affectsVelocity;

void main() {
    ivec2 coord = ivec2(gl_GlobalInvocationID.xy);
    ivec2 size = imageSize(dst);
    if (coord.x >= size.x || coord.y >= size.y) return;

    vec2 uv = (vec2(coord) + 0.5) / vec2(size);
    vec2 d = uv - point;
    d.x *= aspect;
    float w = exp(-dot(d, d) / max(radius * radius, 1e-12));

    vec4 base = imageLoad(src, coord);
    if (affectsVelocity != 0) {
        base.xy += delta * w;
    } else {
        base += vec4(color * w, w);
    }
    imageStore(dst, coord, base);
}
`

const divergenceShader = `
#version 430 core

layout(local_size_x = 8, local_size_y = 8) in;

layout(binding = 0, rgba32f) uniform writeonly image2D dst;
layout(binding = 1, rgba32f) uniform readonly image2D velocity;

uniform vec2 texelSize;

ivec2 cellAt(vec2 uv) {
    return clamp(ivec2(floor(uv / texelSize)), ivec2(0), imageSize(dst) - 1);
}

void main() {
    ivec2 coord = ivec2(gl_GlobalInvocationID.xy);
    ivec2 size = imageSize(dst);
    if (coord.x >= size.x || coord.y >= size.y) return;

    vec2 uv = (vec2(coord) + 0.5) * texelSize;
    float L = imageLoad(velocity, cellAt(uv - vec2(texelSize.x, 0.0))).x;
    float R = imageLoad(velocity, cellAt(uv + vec2(texelSize.x, 0.0))).x;
    float B = imageLoad(velocity, cellAt(uv - vec2(0.0, texelSize.y))).y;
    float T = imageLoad(velocity, cellAt(uv + vec2(0.0, texelSize.y))).y;

    imageStore(dst, coord, vec4(0.5 * ((R - L) + (T - B)), 0.0, 0.0, 0.0));
}
`

// One Jacobi relaxation of the pressure Poisson equation
const jacobiShader = `
#version 430 core

layout(local_size_x = 8, local_size_y = 8) in;

layout(binding = 0, rgba32f) uniform writeonly image2D dst;
layout(binding = 1, rgba32f) uniform readonly image2D pressure;
layout(binding = 2, rgba32f) uniform readonly image2D divergence;

uniform float alpha;
uniform float rBeta;

float p(ivec2 c) {
    return imageLoad(pressure, clamp(c, ivec2(0), imageSize(dst) - 1)).x;
}

void main() {
    ivec2 coord = ivec2(gl_GlobalInvocationID.xy);
    ivec2 size = imageSize(dst);
    if (coord.x >= size.x || coord.y >= size.y) return;

    float L = p(coord - ivec2(1, 0));
    float R = p(coord + ivec2(1, 0));
    float B = p(coord - ivec2(0, 1));
    float T = p(coord + ivec2(0, 1));
    float b = imageLoad(divergence, coord).x;

    imageStore(dst, coord, vec4((L + R + B + T + alpha * b) * rBeta, 0.0, 0.0, 0.0));
}
`

// Subtract the pressure gradient from velocity
const projectShader = `
#version 430 core

layout(local_size_x = 8, local_size_y = 8) in;

layout(binding = 0, rgba32f) uniform writeonly image2D dst;
layout(binding = 1, rgba32f) uniform readonly image2D velocity;
layout(binding = 2, rgba32f) uniform readonly image2D pressure;

uniform vec2 texelSize;

ivec2 cellAt(vec2 uv) {
    return clamp(ivec2(floor(uv / texelSize)), ivec2(0), imageSize(dst) - 1);
}

void main() {
    ivec2 coord = ivec2(gl_GlobalInvocationID.xy);
    ivec2 size = imageSize(dst);
    if (coord.x >= size.x || coord.y >= size.y) return;

    vec2 uv = (vec2(coord) + 0.5) * texelSize;
    float L = imageLoad(pressure, cellAt(uv - vec2(texelSize.x, 0.0))).x;
    float R = imageLoad(pressure, cellAt(uv + vec2(texelSize.x, 0.0))).x;
    float B = imageLoad(pressure, cellAt(uv - vec2(0.0, texelSize.y))).x;
    float T = imageLoad(pressure, cellAt(uv + vec2(0.0, texelSize.y))).x;

    vec4 vel = imageLoad(velocity, coord);
    vel.xy -= 0.5 * vec2(R - L, T - B);
    imageStore(dst, coord, vel);
}
`
