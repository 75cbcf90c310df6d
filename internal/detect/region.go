package detect

// PlateRegion derives the sub-rectangle expected to contain the license
// plate from a vehicle detection. Cars mount plates low on the body, so the
// region is the lower quarter of the box; motorcycles are too small for a
// sub-region heuristic and keep the whole box, as do detections from
// plate-only models (ClassOther), whose box already is the plate.
func PlateRegion(d Detection, frameW, frameH int) Box {
	b := d.Box
	if d.Class == ClassCar {
		b.Y1 = b.Y1 + 0.75*b.Height()
	}
	return b.Clip(frameW, frameH)
}
