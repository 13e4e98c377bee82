package services

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wenlng/go-captcha/v2/rotate"
)

const defaultCaptchaImageSize = 220

// CaptchaService guards the admin login with a rotate captcha.
// The client renders both images, lets the operator rotate the thumb and
// posts the angle back with the challenge id. Challenges are single-shot.
type CaptchaService interface {
	GenerateRotate(ctx context.Context) (*RotateChallenge, error)
	VerifyRotate(ctx context.Context, challengeID string, userAngle float64) bool
	Close()
}

type RotateChallenge struct {
	ID                string
	MasterImageBase64 string
	ThumbImageBase64  string
}

type captchaServiceImpl struct {
	rotator rotate.Captcha
	store   *challengeStore
	padding int // accepted angle difference in degrees
}

// NewCaptchaServiceRotate builds a rotate captcha over generated backgrounds.
// Challenges expire after ttl.
func NewCaptchaServiceRotate(ttl time.Duration, padding int, imgSizePx int) (CaptchaService, error) {
	if imgSizePx <= 0 {
		imgSizePx = defaultCaptchaImageSize
	}
	if padding <= 0 {
		padding = 8
	}

	builder := rotate.NewBuilder(rotate.WithImageSquareSize(imgSizePx))
	builder.SetResources(rotate.WithImages(generateRotateBackgrounds(3, imgSizePx)))

	return &captchaServiceImpl{
		rotator: builder.Make(),
		store:   newChallengeStore(ttl),
		padding: padding,
	}, nil
}

func (s *captchaServiceImpl) GenerateRotate(ctx context.Context) (*RotateChallenge, error) {
	captData, err := s.rotator.Generate()
	if err != nil {
		return nil, err
	}

	block := captData.GetData()
	if block == nil {
		return nil, errors.New("captcha generator returned no data")
	}

	masterB64, err := captData.GetMasterImage().ToBase64()
	if err != nil {
		return nil, err
	}
	thumbB64, err := captData.GetThumbImage().ToBase64()
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	s.store.put(id, block.Angle)

	return &RotateChallenge{
		ID:                id,
		MasterImageBase64: masterB64,
		ThumbImageBase64:  thumbB64,
	}, nil
}

// VerifyRotate consumes the challenge whatever the outcome
func (s *captchaServiceImpl) VerifyRotate(ctx context.Context, challengeID string, userAngle float64) bool {
	target, ok := s.store.take(challengeID)
	if !ok {
		return false
	}
	return rotate.Validate(int(math.Round(userAngle)), target, s.padding)
}

func (s *captchaServiceImpl) Close() {
	s.store.close()
}

type challenge struct {
	angle     int
	expiresAt time.Time
}

// challengeStore keeps pending challenges in memory and sweeps expired ones every minute
type challengeStore struct {
	mu      sync.Mutex
	entries map[string]challenge
	ttl     time.Duration
	done    chan struct{}
	once    sync.Once
}

func newChallengeStore(ttl time.Duration) *challengeStore {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	s := &challengeStore{
		entries: make(map[string]challenge),
		ttl:     ttl,
		done:    make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

func (s *challengeStore) put(id string, angle int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = challenge{angle: angle, expiresAt: time.Now().Add(s.ttl)}
}

func (s *challengeStore) take(id string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return 0, false
	}
	delete(s.entries, id)
	if time.Now().After(e.expiresAt) {
		return 0, false
	}
	return e.angle, true
}

func (s *challengeStore) close() {
	s.once.Do(func() { close(s.done) })
}

func (s *challengeStore) sweepLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.mu.Lock()
			for k, v := range s.entries {
				if now.After(v.expiresAt) {
					delete(s.entries, k)
				}
			}
			s.mu.Unlock()
		}
	}
}

func generateRotateBackgrounds(n int, size int) []image.Image {
	if n <= 0 {
		n = 1
	}
	imgs := make([]image.Image, 0, n)
	for range n {
		imgs = append(imgs, newNoiseGradientImage(size, size))
	}
	return imgs
}

// newNoiseGradientImage draws a radial gradient with noise and two translucent bands
func newNoiseGradientImage(w, h int) image.Image {
	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			dx := float64(x - w/2)
			dy := float64(y - h/2)
			t := math.Min(1, math.Sqrt(dx*dx+dy*dy)/float64(w/2))
			base := uint8(200 - int(150*t))
			noise := uint8(rand.IntN(30))
			rgba.Set(x, y, color.RGBA{R: base + noise/3, G: base, B: 255 - base/2, A: 255})
		}
	}
	fillRect(rgba, 10, 10, w/3, h/12, color.RGBA{R: 255, G: 255, B: 255, A: 32})
	fillRect(rgba, w/2, h/3, w/3, h/10, color.RGBA{R: 0, G: 0, B: 0, A: 24})
	return rgba
}

func fillRect(dst *image.RGBA, x, y, w, h int, c color.RGBA) {
	draw.Draw(dst, image.Rect(x, y, x+w, y+h), &image.Uniform{C: c}, image.Point{}, draw.Over)
}
