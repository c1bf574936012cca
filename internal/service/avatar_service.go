package service

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"quill/internal/models"
	"quill/internal/observability"

	"github.com/chai2010/webp"
	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	// AvatarMaxSize is the bounding box avatars are shrunk into.
	AvatarMaxSize = 125

	avatarJPEGQuality     = 82
	avatarWebPQuality     = 70
	maxAvatarUploadBytes  = 5 * 1024 * 1024
	avatarFilePermissions = 0o600
)

// AvatarService resizes uploaded avatar images and stores them under
// randomized filenames in the upload directory.
type AvatarService struct {
	uploadDir string
}

func NewAvatarService(uploadDir string) *AvatarService {
	return &AvatarService{uploadDir: uploadDir}
}

// Save validates, shrinks, and stores an uploaded avatar. It returns the new
// randomized filename. The original file extension is preserved; the previous
// avatar file is left in place. On any failure no file remains on disk.
func (s *AvatarService) Save(originalFilename string, content []byte) (string, error) {
	if len(content) == 0 {
		return "", models.NewValidationError("No file uploaded")
	}
	if len(content) > maxAvatarUploadBytes {
		observability.AvatarUploads.WithLabelValues("rejected").Inc()
		return "", models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", maxAvatarUploadBytes/(1024*1024)))
	}

	detectedType := http.DetectContentType(content)
	if !isAllowedAvatarMIME(detectedType) {
		observability.AvatarUploads.WithLabelValues("rejected").Inc()
		return "", models.NewValidationError("Invalid image type")
	}

	decoded, format, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		observability.AvatarUploads.WithLabelValues("rejected").Inc()
		return "", models.NewValidationError("Invalid image file")
	}

	resized := resizeToFit(decoded, AvatarMaxSize, AvatarMaxSize)

	encoded, err := encodeAvatar(resized, format)
	if err != nil {
		observability.AvatarUploads.WithLabelValues("failed").Inc()
		return "", models.NewInternalError(err)
	}

	filename := randomAvatarName(originalFilename, format)
	if err := s.writeAtomic(filename, encoded); err != nil {
		observability.AvatarUploads.WithLabelValues("failed").Inc()
		return "", models.NewInternalError(err)
	}

	observability.AvatarUploads.WithLabelValues("ok").Inc()
	return filename, nil
}

// EnsureDefaultAvatar creates the stock avatar served to users who never
// uploaded one. Safe to call on every startup.
func (s *AvatarService) EnsureDefaultAvatar() error {
	path := filepath.Join(s.uploadDir, models.DefaultAvatar)
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	img := image.NewRGBA(image.Rect(0, 0, AvatarMaxSize, AvatarMaxSize))
	fill := color.RGBA{R: 0x90, G: 0xA4, B: 0xAE, A: 0xFF}
	xdraw.Draw(img, img.Bounds(), image.NewUniform(fill), image.Point{}, xdraw.Src)

	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, img); err != nil {
		return err
	}
	return s.writeAtomic(models.DefaultAvatar, buf.Bytes())
}

// Path returns the on-disk location of a stored avatar.
func (s *AvatarService) Path(filename string) string {
	return filepath.Join(s.uploadDir, filename)
}

// UploadDir returns the directory avatars are stored in.
func (s *AvatarService) UploadDir() string {
	return s.uploadDir
}

// writeAtomic writes through a temp file and renames into place so a failed
// write never leaves a partial avatar behind.
func (s *AvatarService) writeAtomic(filename string, data []byte) error {
	if err := os.MkdirAll(s.uploadDir, 0o750); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.uploadDir, ".upload-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, avatarFilePermissions); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, filepath.Join(s.uploadDir, filename)); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

// randomAvatarName builds a collision-resistant filename, keeping the
// original extension when it is usable.
func randomAvatarName(originalFilename, format string) string {
	ext := strings.ToLower(filepath.Ext(originalFilename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
	default:
		ext = extensionForFormat(format)
	}
	return strings.ReplaceAll(uuid.New().String(), "-", "") + ext
}

func extensionForFormat(format string) string {
	switch strings.ToLower(format) {
	case "png":
		return ".png"
	case "gif":
		return ".gif"
	case "webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

// encodeAvatar re-encodes the resized image in its source format.
func encodeAvatar(img image.Image, format string) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	switch strings.ToLower(format) {
	case "png":
		if err := png.Encode(buf, img); err != nil {
			return nil, err
		}
	case "gif":
		if err := gif.Encode(buf, img, nil); err != nil {
			return nil, err
		}
	case "webp":
		if err := webp.Encode(buf, img, &webp.Options{Quality: avatarWebPQuality}); err != nil {
			return nil, err
		}
	default:
		if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: avatarJPEGQuality}); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// resizeToFit shrinks src into a maxWidth x maxHeight bounding box preserving
// aspect ratio. Images already inside the box are returned unchanged.
func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scaleW := float64(maxWidth) / float64(w)
	scaleH := float64(maxHeight) / float64(h)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}
	newW := int(float64(w) * scale)
	newH := int(float64(h) * scale)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func isAllowedAvatarMIME(contentType string) bool {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}
