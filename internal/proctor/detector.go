package proctor

import (
	"fmt"
	"image"
	"os"
	"sort"

	pigo "github.com/esimov/pigo/core"
)

// FaceRegion is one detected face and the number of eyes found inside it.
type FaceRegion struct {
	Bounds image.Rectangle
	Eyes   int
}

// FaceDetector finds faces in a grayscale, equalized frame.
type FaceDetector interface {
	Detect(gray *image.Gray) ([]FaceRegion, error)
}

// VerifiedCount counts regions with at least one eye, or with an area above
// areaThreshold when no eye was resolved.
func VerifiedCount(regions []FaceRegion, areaThreshold int) int {
	n := 0
	for _, r := range regions {
		if r.Eyes > 0 || r.Bounds.Dx()*r.Bounds.Dy() > areaThreshold {
			n++
		}
	}
	return n
}

const (
	faceQualityThreshold = 5.0
	clusterIoU           = 0.2
	pupilPerturbs        = 63

	// Eye search origins as fractions of the face scale.
	eyeRowOffset = -0.075
	leftEye      = -0.175
	rightEye     = 0.185

	// The localiser is restarted from eyeStarts points spaced eyeStep apart.
	// An eye counts only when every run lands within eyeSpread of the median.
	eyeStep   = 0.04
	eyeSpread = 0.025
)

// PigoDetector runs pigo's face cascade and pupil localisation.
type PigoDetector struct {
	faces   *pigo.Pigo
	pupils  *pigo.PuplocCascade
	minSize int
}

// NewPigoDetector unpacks the face and pupil cascades.
func NewPigoDetector(faceCascade, pupilCascade []byte, minSize int) (*PigoDetector, error) {
	faces, err := pigo.NewPigo().Unpack(faceCascade)
	if err != nil {
		return nil, fmt.Errorf("unpack face cascade: %w", err)
	}
	pupils, err := pigo.NewPuplocCascade().UnpackCascade(pupilCascade)
	if err != nil {
		return nil, fmt.Errorf("unpack pupil cascade: %w", err)
	}
	if minSize <= 0 {
		minSize = 80
	}
	return &PigoDetector{faces: faces, pupils: pupils, minSize: minSize}, nil
}

// LoadPigoDetector reads the cascades from disk.
func LoadPigoDetector(facePath, pupilPath string, minSize int) (*PigoDetector, error) {
	face, err := os.ReadFile(facePath)
	if err != nil {
		return nil, fmt.Errorf("read face cascade: %w", err)
	}
	pupil, err := os.ReadFile(pupilPath)
	if err != nil {
		return nil, fmt.Errorf("read pupil cascade: %w", err)
	}
	return NewPigoDetector(face, pupil, minSize)
}

// Detect implements FaceDetector.
func (d *PigoDetector) Detect(gray *image.Gray) ([]FaceRegion, error) {
	b := gray.Bounds()
	rows, cols := b.Dy(), b.Dx()
	if rows < d.minSize || cols < d.minSize {
		return nil, nil
	}

	imgParams := pigo.ImageParams{
		Pixels: gray.Pix,
		Rows:   rows,
		Cols:   cols,
		Dim:    gray.Stride,
	}
	maxSize := rows
	if cols < maxSize {
		maxSize = cols
	}

	dets := d.faces.RunCascade(pigo.CascadeParams{
		MinSize:     d.minSize,
		MaxSize:     maxSize,
		ShiftFactor: 0.1,
		ScaleFactor: 1.1,
		ImageParams: imgParams,
	}, 0.0)
	dets = d.faces.ClusterDetections(dets, clusterIoU)

	regions := make([]FaceRegion, 0, len(dets))
	for _, det := range dets {
		if det.Q < faceQualityThreshold {
			continue
		}
		half := det.Scale / 2
		region := FaceRegion{
			Bounds: image.Rect(det.Col-half, det.Row-half, det.Col+half, det.Row+half),
		}
		for _, side := range []float32{leftEye, rightEye} {
			if d.eyeAt(det, imgParams, side) {
				region.Eyes++
			}
		}
		regions = append(regions, region)
	}
	return regions, nil
}

// eyeAt reports whether the pupil localiser settles on the same point from
// several starting positions, and that point lies on the expected side of the
// face above its centre. On texture without an eye the localiser output moves
// with its starting point, so the runs disagree.
func (d *PigoDetector) eyeAt(det pigo.Detection, img pigo.ImageParams, side float32) bool {
	scale := float32(det.Scale)
	row := float32(det.Row) + eyeRowOffset*scale
	col := float32(det.Col) + side*scale
	step := eyeStep * scale

	starts := [][2]float32{{0, 0}, {-step, 0}, {step, 0}, {0, -step}, {0, step}}
	rows := make([]int, 0, len(starts))
	cols := make([]int, 0, len(starts))
	for _, st := range starts {
		eye := d.pupils.RunDetector(pigo.Puploc{
			Row:      int(row + st[0]),
			Col:      int(col + st[1]),
			Scale:    scale * 0.25,
			Perturbs: pupilPerturbs,
		}, img, 0.0, false)
		if eye == nil {
			return false
		}
		rows = append(rows, eye.Row)
		cols = append(cols, eye.Col)
	}

	medRow, medCol := median(rows), median(cols)
	tol := int(eyeSpread * scale)
	for i := range rows {
		if abs(rows[i]-medRow) > tol || abs(cols[i]-medCol) > tol {
			return false
		}
	}

	if medRow < det.Row-int(0.3*scale) || medRow > det.Row+int(0.05*scale) {
		return false
	}
	reach := int(0.4 * scale)
	if side < 0 {
		return medCol < det.Col && medCol >= det.Col-reach
	}
	return medCol > det.Col && medCol <= det.Col+reach
}

func median(v []int) int {
	s := append([]int(nil), v...)
	sort.Ints(s)
	return s[len(s)/2]
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
