package common

import (
	"mime"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/gosimple/slug"

	apperrors "github.com/louisbranch/oilandrope/internal/platform/errors"
)

// MaxUploadSize is the largest accepted upload, in bytes.
const MaxUploadSize int64 = 3 * 1024 * 1024

// audioExtensions covers formats the system mime table may not know.
var audioExtensions = map[string]string{
	".aac":  "audio/aac",
	".flac": "audio/flac",
	".m4a":  "audio/mp4",
	".mid":  "audio/midi",
	".mp3":  "audio/mpeg",
	".oga":  "audio/ogg",
	".ogg":  "audio/ogg",
	".opus": "audio/opus",
	".wav":  "audio/wav",
	".weba": "audio/webm",
}

// UploadPath returns app/model/YYYY/MM/DD/<id>/<slug(name)><ext>.
func UploadPath(app, model, id, filename string, now time.Time) string {
	if strings.TrimSpace(id) == "" {
		id = "unknown_identifier"
	}
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	ext := strings.ToLower(path.Ext(base))
	name := slug.Make(strings.TrimSuffix(base, path.Ext(base)))
	if name == "" {
		name = "file"
	}
	return path.Join(
		strings.ToLower(app),
		strings.ToLower(model),
		now.UTC().Format("2006/01/02"),
		id,
		name+ext,
	)
}

// MaxSizeMiB renders a byte size in MiB, without decimals when integral.
func MaxSizeMiB(size int64) string {
	mib := float64(size) / 1024 / 1024
	if mib == float64(int64(mib)) {
		return strconv.FormatInt(int64(mib), 10)
	}
	return strconv.FormatFloat(mib, 'f', -1, 64)
}

// ValidateFileSize rejects files larger than MaxUploadSize.
func ValidateFileSize(size int64) error {
	return validateFileSize(size, MaxUploadSize)
}

func validateFileSize(size, max int64) error {
	if size > max {
		return apperrors.WithMetadata(apperrors.CodeFileTooLarge, "file too large",
			map[string]string{"MaxSize": MaxSizeMiB(max)})
	}
	return nil
}

// ValidateMusicFile checks that an upload is audio within the size limit.
// contentType may carry parameters; an empty one falls back to the file
// extension.
func ValidateMusicFile(filename, contentType string, size int64) error {
	if err := ValidateFileSize(size); err != nil {
		return err
	}
	mediaType := ""
	if contentType = strings.TrimSpace(contentType); contentType != "" {
		parsed, _, err := mime.ParseMediaType(contentType)
		if err == nil {
			mediaType = parsed
		}
	}
	if mediaType == "" || mediaType == "application/octet-stream" {
		ext := strings.ToLower(path.Ext(filename))
		mediaType = audioExtensions[ext]
		if mediaType == "" {
			mediaType = mime.TypeByExtension(ext)
		}
		if parsed, _, err := mime.ParseMediaType(mediaType); err == nil {
			mediaType = parsed
		}
	}
	if !strings.HasPrefix(mediaType, "audio/") {
		return apperrors.New(apperrors.CodeFileNotAudio, "file is not an audio file")
	}
	return nil
}
