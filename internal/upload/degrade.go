package upload

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"log"

	// Decoders for the accepted input formats.
	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// minInlineWidth is the narrowest re-encode tried before giving up on the
// inline ceiling.
const minInlineWidth = 160

// inlineQualities are tried in order at each width.
var inlineQualities = []int{0, 60, 40}

// degrade re-encodes data as a downscaled JPEG data URL. When the image
// cannot be decoded, exceeds the pixel budget, or cannot be encoded within
// the inline ceiling, the original bytes are inlined as-is, so this never
// fails. It returns the URL and the size of the encoded payload.
func (p *Pipeline) degrade(data []byte, contentType string) (string, int) {
	out, err := p.recompress(data)
	if err != nil {
		log.Printf("[Upload] Recompress failed, inlining original %s: %v", contentType, err)
		return dataURL(contentType, data), len(data)
	}
	return dataURL("image/jpeg", out), len(out)
}

func (p *Pipeline) recompress(data []byte) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%d", cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > p.config.MaxPixels {
		return nil, fmt.Errorf("%dx%d exceeds the %d pixel budget", cfg.Width, cfg.Height, p.config.MaxPixels)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	w, h := fitWithin(src.Bounds().Dx(), src.Bounds().Dy(), p.config.MaxWidth, p.config.MaxHeight)
	ceiling := encodedCeiling(p.config.MaxInlineBytes)

	for {
		dst := scale(src, w, h)
		for _, q := range inlineQualities {
			if q == 0 || q > p.config.Quality {
				q = p.config.Quality
			}
			var buf bytes.Buffer
			if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: q}); err != nil {
				return nil, err
			}
			if buf.Len() <= ceiling {
				return buf.Bytes(), nil
			}
		}
		if w/2 < minInlineWidth {
			return nil, fmt.Errorf("cannot fit %dx%d within %d inline bytes", w, h, p.config.MaxInlineBytes)
		}
		w, h = fitWithin(w, h, w/2, h)
	}
}

// scale draws src into a w×h RGBA canvas. JPEG has no alpha; flatten onto
// white.
func scale(src image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}

// fitWithin shrinks w×h to fit maxW×maxH, keeping the aspect ratio.
func fitWithin(w, h, maxW, maxH int) (int, int) {
	if w > maxW {
		h = int(int64(h) * int64(maxW) / int64(w))
		w = maxW
	}
	if h > maxH {
		w = int(int64(w) * int64(maxH) / int64(h))
		h = maxH
	}
	return max(w, 1), max(h, 1)
}

// encodedCeiling is the largest payload whose data URL stays within limit.
func encodedCeiling(limit int) int {
	return base64.StdEncoding.DecodedLen(limit - len("data:image/jpeg;base64,"))
}

func dataURL(contentType string, data []byte) string {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// MaxDataURLLength is the longest URL Upload can return for config: the
// larger of the inline ceiling and the original file inlined as-is.
func MaxDataURLLength(config Config) int {
	longest := len("image/jpeg")
	for _, t := range config.AllowedTypes {
		longest = max(longest, len(t))
	}
	original := len("data:;base64,") + longest + base64.StdEncoding.EncodedLen(int(config.MaxBytes))
	return max(original, config.MaxInlineBytes)
}
