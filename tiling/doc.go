// Package tiling runs an image-to-image model over images of any size.
//
// A model only sees fixed-size tiles. The engine cuts the source into
// overlapping tiles, stacks them into batches, calls the caller's Transform
// once per batch and blends the results back into a full-resolution canvas.
//
// # Pipeline
//
//	alpha.Split       opaque RGB tensor + optional transparency mask
//	Schedule          row-major tile grid, last tile clamped to the edge
//	BatchRunner       extract, reflect-pad, align-pad, Transform, crop
//	Blender           weighted accumulation, normalize, clip to [0,1]
//	alpha.Recombine   mask resized to the output and reattached
//
// # Weights
//
// Each tile contributes through a separable ramp that fades linearly across
// the overlap on every edge shared with another tile and stays at 1 on image
// borders. Opposite fades over the same overlap sum to 1, and every weight is
// strictly positive, so the weight sum never vanishes.
//
// # Concurrency
//
// Engines are stateless between calls. With Options.Workers > 1 batches run
// on a bounded errgroup; canvas writes are serialized inside the Blender and
// results match the sequential order within floating-point tolerance.
//
// # Usage
//
//	eng, err := tiling.NewEngine(tiling.DefaultOptions(), logger)
//	if err != nil {
//	    return err
//	}
//	out, err := eng.Process(ctx, img, pool.Transform())
package tiling
