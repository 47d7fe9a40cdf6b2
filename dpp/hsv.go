package dpp

// RGB is a literal colour triple, as stored for graph sinks (spec.md §4.7).
type RGB struct {
	R, G, B byte
}

// HSVToRGB converts h (degrees, 0..359) and s/v (percent, 0..100) to RGB
// using integer-only arithmetic — required for reproducibility and so
// embedded tooling sharing the routine gets bit-identical results. Six
// 60-degree sectors select which of (p, q, t, v) feeds each RGB channel.
func HSVToRGB(h, s, v int) RGB {
	h = ((h % 360) + 360) % 360

	// Rescale v (0..100) to 0..255.
	vv := (v*255 + 50) / 100

	if s == 0 {
		return RGB{byte(vv), byte(vv), byte(vv)}
	}

	sector := h / 60
	// Position within the 60-degree sector, rescaled to 0..255.
	frac := ((h-sector*60)*255 + 30) / 60

	p := byte(vv * (100 - s) / 100)
	q := byte(vv * (100 - (s*frac)/255) / 100)
	t := byte(vv * (100 - (s*(255-frac))/255) / 100)
	vb := byte(vv)

	switch sector {
	case 0:
		return RGB{vb, t, p}
	case 1:
		return RGB{q, vb, p}
	case 2:
		return RGB{p, vb, t}
	case 3:
		return RGB{p, q, vb}
	case 4:
		return RGB{t, p, vb}
	default:
		return RGB{vb, p, q}
	}
}
