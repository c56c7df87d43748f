package service

import (
	"context"
	"image"
	"math"
	"sort"
)

// Keypoint matching calibration. These constants are part of the scoring
// contract: the classifier was trained on scores produced with exactly this
// ratio test and amplification.
const (
	loweRatio          = 0.75
	matchAmplification = 10.0
)

// Detector tuning.
const (
	baseSigma         = 1.6
	scalesPerOctave   = 3
	contrastThreshold = 0.03
	edgeRatio         = 10.0
	descriptorRadius  = 8
	maxOctaves        = 4
	maxKeypoints      = 512
)

// KeypointScorer scores image pairs by the ratio of ratio-test-surviving
// descriptor matches to detected keypoints in the first image. Detection
// runs on a single-channel intensity plane through a difference-of-Gaussians
// scale pyramid; descriptors are 128-dimensional gradient-orientation
// histograms computed upright.
type KeypointScorer struct{}

// NewKeypointScorer creates a keypoint scorer.
func NewKeypointScorer() *KeypointScorer {
	return &KeypointScorer{}
}

// ScoreImages detects keypoints on both images, matches descriptors from the
// first image into the second with the 0.75 ratio test, and maps the good
// match count to min((good/keypointsA)*10, 1). Either image yielding zero
// descriptors scores exactly 0.
func (s *KeypointScorer) ScoreImages(ctx context.Context, a, b image.Image) float64 {
	descA := detectDescriptors(toGray(a))
	descB := detectDescriptors(toGray(b))
	if len(descA) == 0 || len(descB) == 0 {
		return 0.0
	}
	good := countGoodMatches(descA, descB)
	return matchScore(good, len(descA))
}

// matchScore maps a good-match count over a keypoint count to [0,1].
func matchScore(good, keypoints int) float64 {
	if keypoints == 0 {
		return 0.0
	}
	score := float64(good) / float64(keypoints) * matchAmplification
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// countGoodMatches runs nearest/second-nearest matching of every descriptor
// in a against b and keeps a match only when the best distance is below
// loweRatio times the second best. Comparisons use squared distances, so the
// ratio is squared too.
func countGoodMatches(a, b []descriptor) int {
	if len(b) < 2 {
		return 0
	}
	ratioSq := float32(loweRatio * loweRatio)
	good := 0
	for i := range a {
		best, second := float32(math.MaxFloat32), float32(math.MaxFloat32)
		for j := range b {
			d := distSq(&a[i], &b[j])
			if d < best {
				second = best
				best = d
			} else if d < second {
				second = d
			}
		}
		if best < ratioSq*second {
			good++
		}
	}
	return good
}

// descriptor is a normalized 128-bin gradient orientation histogram
// (4x4 spatial cells, 8 orientation bins).
type descriptor [128]float32

func distSq(a, b *descriptor) float32 {
	var sum float32
	for i := 0; i < len(a); i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// grayPlane is a single-channel float intensity image in [0,1].
type grayPlane struct {
	w, h int
	pix  []float32
}

func toGray(img image.Image) *grayPlane {
	bounds := img.Bounds()
	p := &grayPlane{w: bounds.Dx(), h: bounds.Dy()}
	p.pix = make([]float32, p.w*p.h)
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			// Rec. 601 luma over 16-bit channels
			p.pix[i] = (0.299*float32(r) + 0.587*float32(g) + 0.114*float32(b)) / 65535.0
			i++
		}
	}
	return p
}

func (p *grayPlane) at(x, y int) float32 {
	if x < 0 {
		x = 0
	} else if x >= p.w {
		x = p.w - 1
	}
	if y < 0 {
		y = 0
	} else if y >= p.h {
		y = p.h - 1
	}
	return p.pix[y*p.w+x]
}

// blur applies a separable Gaussian with the given sigma.
func (p *grayPlane) blur(sigma float64) *grayPlane {
	radius := int(math.Ceil(3 * sigma))
	if radius < 1 {
		radius = 1
	}
	kernel := make([]float32, 2*radius+1)
	var sum float32
	for i := -radius; i <= radius; i++ {
		v := float32(math.Exp(-float64(i*i) / (2 * sigma * sigma)))
		kernel[i+radius] = v
		sum += v
	}
	for i := range kernel {
		kernel[i] /= sum
	}

	tmp := &grayPlane{w: p.w, h: p.h, pix: make([]float32, p.w*p.h)}
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			var acc float32
			for k := -radius; k <= radius; k++ {
				acc += kernel[k+radius] * p.at(x+k, y)
			}
			tmp.pix[y*p.w+x] = acc
		}
	}
	out := &grayPlane{w: p.w, h: p.h, pix: make([]float32, p.w*p.h)}
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			var acc float32
			for k := -radius; k <= radius; k++ {
				acc += kernel[k+radius] * tmp.at(x, y+k)
			}
			out.pix[y*p.w+x] = acc
		}
	}
	return out
}

// halve downsamples by dropping every second pixel.
func (p *grayPlane) halve() *grayPlane {
	w, h := p.w/2, p.h/2
	out := &grayPlane{w: w, h: h, pix: make([]float32, w*h)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.pix[y*w+x] = p.pix[(y*2)*p.w+x*2]
		}
	}
	return out
}

// sub returns p - q elementwise. Planes must share dimensions.
func (p *grayPlane) sub(q *grayPlane) *grayPlane {
	out := &grayPlane{w: p.w, h: p.h, pix: make([]float32, len(p.pix))}
	for i := range p.pix {
		out.pix[i] = p.pix[i] - q.pix[i]
	}
	return out
}

type candidateKeypoint struct {
	x, y     int
	octave   int
	layer    int
	response float32
}

// detectDescriptors finds scale-space extrema on a DoG pyramid and computes
// an upright descriptor for each surviving keypoint, capped to the strongest
// maxKeypoints by absolute DoG response.
func detectDescriptors(plane *grayPlane) []descriptor {
	if plane.w < 2*descriptorRadius+1 || plane.h < 2*descriptorRadius+1 {
		return nil
	}

	k := math.Pow(2, 1.0/scalesPerOctave)
	var candidates []candidateKeypoint
	// gaussians per octave, kept for descriptor sampling
	octaveBlurred := make([][]*grayPlane, 0, maxOctaves)

	base := plane.blur(baseSigma)
	for octave := 0; octave < maxOctaves; octave++ {
		if base.w < 2*descriptorRadius+1 || base.h < 2*descriptorRadius+1 {
			break
		}

		gaussians := make([]*grayPlane, scalesPerOctave+3)
		gaussians[0] = base
		sigma := baseSigma
		for i := 1; i < len(gaussians); i++ {
			next := sigma * k
			delta := math.Sqrt(next*next - sigma*sigma)
			gaussians[i] = gaussians[i-1].blur(delta)
			sigma = next
		}
		octaveBlurred = append(octaveBlurred, gaussians)

		dogs := make([]*grayPlane, len(gaussians)-1)
		for i := range dogs {
			dogs[i] = gaussians[i+1].sub(gaussians[i])
		}

		candidates = append(candidates, findExtrema(dogs, octave)...)

		base = gaussians[scalesPerOctave].halve()
	}

	if len(candidates) == 0 {
		return nil
	}

	// keep the strongest responses; the matcher is quadratic in keypoints
	sort.Slice(candidates, func(i, j int) bool {
		ri := candidates[i].response
		rj := candidates[j].response
		if ri < 0 {
			ri = -ri
		}
		if rj < 0 {
			rj = -rj
		}
		return ri > rj
	})
	if len(candidates) > maxKeypoints {
		candidates = candidates[:maxKeypoints]
	}

	descriptors := make([]descriptor, 0, len(candidates))
	for _, c := range candidates {
		img := octaveBlurred[c.octave][c.layer]
		if d, ok := computeDescriptor(img, c.x, c.y); ok {
			descriptors = append(descriptors, d)
		}
	}
	return descriptors
}

// findExtrema scans interior DoG layers for 26-neighbourhood extrema that
// pass the contrast and edge-response tests.
func findExtrema(dogs []*grayPlane, octave int) []candidateKeypoint {
	var out []candidateKeypoint
	for layer := 1; layer < len(dogs)-1; layer++ {
		d := dogs[layer]
		for y := descriptorRadius; y < d.h-descriptorRadius; y++ {
			for x := descriptorRadius; x < d.w-descriptorRadius; x++ {
				v := d.pix[y*d.w+x]
				if v < contrastThreshold && v > -contrastThreshold {
					continue
				}
				if !isExtremum(dogs, layer, x, y, v) {
					continue
				}
				if isEdgeResponse(d, x, y) {
					continue
				}
				out = append(out, candidateKeypoint{
					x: x, y: y,
					octave:   octave,
					layer:    layer + 1, // descriptor samples the matching gaussian
					response: v,
				})
			}
		}
	}
	return out
}

func isExtremum(dogs []*grayPlane, layer, x, y int, v float32) bool {
	isMax := true
	isMin := true
	for dl := -1; dl <= 1; dl++ {
		d := dogs[layer+dl]
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dl == 0 && dx == 0 && dy == 0 {
					continue
				}
				n := d.at(x+dx, y+dy)
				if n >= v {
					isMax = false
				}
				if n <= v {
					isMin = false
				}
				if !isMax && !isMin {
					return false
				}
			}
		}
	}
	return isMax || isMin
}

// isEdgeResponse rejects keypoints whose principal curvature ratio exceeds
// edgeRatio, following the Hessian trace/determinant test.
func isEdgeResponse(d *grayPlane, x, y int) bool {
	dxx := d.at(x+1, y) + d.at(x-1, y) - 2*d.at(x, y)
	dyy := d.at(x, y+1) + d.at(x, y-1) - 2*d.at(x, y)
	dxy := (d.at(x+1, y+1) - d.at(x-1, y+1) - d.at(x+1, y-1) + d.at(x-1, y-1)) / 4
	trace := dxx + dyy
	det := dxx*dyy - dxy*dxy
	if det <= 0 {
		return true
	}
	threshold := float32((edgeRatio + 1) * (edgeRatio + 1) / edgeRatio)
	return trace*trace/det >= threshold
}

// computeDescriptor builds a 4x4-cell, 8-orientation-bin gradient histogram
// over a 16x16 window. Descriptors are computed upright: no dominant
// orientation alignment. Normalized, clamped at 0.2, renormalized.
func computeDescriptor(img *grayPlane, cx, cy int) (descriptor, bool) {
	var d descriptor
	sigma := float64(descriptorRadius)
	var total float32

	for dy := -descriptorRadius; dy < descriptorRadius; dy++ {
		for dx := -descriptorRadius; dx < descriptorRadius; dx++ {
			x, y := cx+dx, cy+dy
			gx := img.at(x+1, y) - img.at(x-1, y)
			gy := img.at(x, y+1) - img.at(x, y-1)
			mag := float32(math.Sqrt(float64(gx*gx + gy*gy)))
			if mag == 0 {
				continue
			}
			weight := float32(math.Exp(-float64(dx*dx+dy*dy) / (2 * sigma * sigma)))

			angle := math.Atan2(float64(gy), float64(gx)) // [-pi, pi]
			bin := int((angle + math.Pi) / (2 * math.Pi) * 8)
			if bin >= 8 {
				bin = 7
			}

			cellX := (dx + descriptorRadius) / 4
			cellY := (dy + descriptorRadius) / 4
			idx := (cellY*4+cellX)*8 + bin
			d[idx] += weight * mag
			total += weight * mag
		}
	}

	if total == 0 {
		return d, false
	}

	normalizeDescriptor(&d)
	// clamp large bins to reduce sensitivity to local illumination, then renormalize
	for i := range d {
		if d[i] > 0.2 {
			d[i] = 0.2
		}
	}
	normalizeDescriptor(&d)
	return d, true
}

func normalizeDescriptor(d *descriptor) {
	var sum float32
	for _, v := range d {
		sum += v * v
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(float64(sum)))
	for i := range d {
		d[i] *= inv
	}
}
