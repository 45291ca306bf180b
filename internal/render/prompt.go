package render

// RenderPrompt instructs the image model to turn a floor plan into a
// top-down 3D render that keeps the plan's geometry.
const RenderPrompt = `Convert this 2D architectural floor plan into a photorealistic top-down 3D render.
Keep every wall, door, window and room exactly where the plan places them; do not add, remove or resize rooms.
Remove dimension lines, room labels and annotation text.
Furnish each room according to its apparent purpose with realistic materials, soft daylight and subtle shadows.
Render from directly above with an orthographic feel, neutral background, no people, no watermark.`
