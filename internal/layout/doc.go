// Package layout turns a document page into classified layout regions.
//
// A run has four stages. Letterbox scales the page into the detector's fixed
// input with gray padding and records the TransformParams. An Inferencer runs
// the network. Decode maps its [1, N, 6] output back onto the page and drops
// weak or degenerate candidates. Suppress removes duplicates per category.
// Markdown then describes the surviving regions top to bottom.
//
// Pipeline wires the stages together and never panics: every failure,
// including a missing backend, comes back as a Result with StatusFailed.
//
//	p, err := layout.NewPipeline(session, layout.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	res := p.Analyze(ctx, page)
//	fmt.Println(res.Markdown)
package layout
