package infrastructure

// GetExtensionFromMIME возвращает расширение файла по MIME-типу изображения.
// Неизвестные типы складываются как "bin" — для зеркальной копии это не фатально.
func GetExtensionFromMIME(mime string) string {
	switch mime {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	default:
		return "bin"
	}
}
