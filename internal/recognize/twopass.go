package recognize

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"math"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

// PassConfig is the sensitivity profile for one Tesseract pass.
type PassConfig struct {
	Name           string
	PageSegMode    gosseract.PageSegMode
	MagRatio       float64           // extra upscale before recognition
	MinGlyphHeight int               // spans shorter than this are noise
	Variables      map[string]string // raw tesseract knobs
}

// StandardPass is the moderate profile used first.
func StandardPass() PassConfig {
	return PassConfig{
		Name:           "standard",
		PageSegMode:    gosseract.PSM_SINGLE_LINE,
		MagRatio:       1.5,
		MinGlyphHeight: 10,
		Variables: map[string]string{
			// Plates are not dictionary words.
			"load_system_dawg": "false",
			"load_freq_dawg":   "false",
		},
	}
}

// LenientPass trades precision for recall: sparse segmentation, a larger
// upscale and a smaller glyph floor recover faint or partially merged
// strokes. Wide glyphs like W are systematically missed at standard
// sensitivity because their stroke spacing reads as a word break.
func LenientPass() PassConfig {
	return PassConfig{
		Name:           "lenient",
		PageSegMode:    gosseract.PSM_SPARSE_TEXT,
		MagRatio:       2.0,
		MinGlyphHeight: 8,
		Variables: map[string]string{
			"load_system_dawg": "false",
			"load_freq_dawg":   "false",
		},
	}
}

// TwoPassRecognizer runs the same crop through Tesseract once per pass
// profile, pools every word span both passes produce, and keeps the single
// highest-confidence span. Two complementary sensitivity settings
// approximate an ensemble without a second model. Clients are configured
// once at construction and reused; construction fails if the Tesseract
// runtime or language data is missing.
type TwoPassRecognizer struct {
	passes  []PassConfig
	clients []*gosseract.Client
}

func NewTwoPassRecognizer(passes ...PassConfig) (*TwoPassRecognizer, error) {
	if len(passes) == 0 {
		passes = []PassConfig{StandardPass(), LenientPass()}
	}

	r := &TwoPassRecognizer{passes: passes}
	for _, pass := range passes {
		client := gosseract.NewClient()
		if err := configureClient(client, pass); err != nil {
			client.Close()
			r.Close()
			return nil, fmt.Errorf("%w: pass %s: %v", ErrEngineUnavailable, pass.Name, err)
		}
		r.clients = append(r.clients, client)
	}
	return r, nil
}

func configureClient(client *gosseract.Client, pass PassConfig) error {
	if err := client.SetLanguage("eng"); err != nil {
		return fmt.Errorf("set language: %w", err)
	}
	if err := client.SetWhitelist(Alphabet); err != nil {
		return fmt.Errorf("set whitelist: %w", err)
	}
	if err := client.SetPageSegMode(pass.PageSegMode); err != nil {
		return fmt.Errorf("set page seg mode: %w", err)
	}
	for key, value := range pass.Variables {
		if err := client.SetVariable(gosseract.SettableVariable(key), value); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}
	return nil
}

func (r *TwoPassRecognizer) Recognize(crop image.Image) (Candidate, error) {
	if crop == nil {
		return Candidate{}, nil
	}
	bounds := crop.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return Candidate{}, nil
	}

	var spans []span
	for i, client := range r.clients {
		pass := r.passes[i]
		spans = append(spans, r.runPass(client, pass, crop)...)
	}

	return Accept(selectBest(spans)), nil
}

// runPass returns every usable word span from one pass. A pass that fails
// contributes nothing; a failed read is an empty result, not an error.
func (r *TwoPassRecognizer) runPass(client *gosseract.Client, pass PassConfig, crop image.Image) []span {
	img := crop
	if pass.MagRatio > 1 {
		bounds := crop.Bounds()
		img = imaging.Resize(crop,
			int(math.Round(float64(bounds.Dx())*pass.MagRatio)),
			int(math.Round(float64(bounds.Dy())*pass.MagRatio)),
			imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil
	}

	var spans []span
	for _, box := range boxes {
		text := sanitize(box.Word)
		if text == "" {
			continue
		}
		if box.Box.Dy() < pass.MinGlyphHeight {
			continue
		}
		spans = append(spans, span{text: text, confidence: box.Confidence / 100.0})
	}
	return spans
}

// Close releases the Tesseract clients.
func (r *TwoPassRecognizer) Close() error {
	for _, client := range r.clients {
		client.Close()
	}
	r.clients = nil
	return nil
}
