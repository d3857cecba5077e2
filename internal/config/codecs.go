package config

// ValidAudioCodecs contains the audio codecs the engine can extract to.
// These map to yt-dlp's --audio-format choices.
var ValidAudioCodecs = []string{
	"mp3",  // Widest player support (default)
	"m4a",  // AAC in an MP4 audio container
	"opus", // Best quality per bit, weaker device support
	"vorbis",
	"flac", // Lossless, large files
	"wav",
}

// ValidVideoContainers contains the containers video downloads may be merged into.
var ValidVideoContainers = []string{"mp4", "mkv", "webm"}

// DefaultAudioCodec is the default audio extraction codec.
const DefaultAudioCodec = "mp3"

// DefaultVideoContainer is the default merge container for video downloads.
const DefaultVideoContainer = "mp4"

// IsValidAudioCodec returns true if the codec name is valid.
func IsValidAudioCodec(codec string) bool {
	return contains(ValidAudioCodecs, codec)
}

// IsValidVideoContainer returns true if the container name is valid.
func IsValidVideoContainer(container string) bool {
	return contains(ValidVideoContainers, container)
}

// AudioExtension returns the file extension an extracted audio file ends up with.
// yt-dlp writes vorbis into .ogg; every other codec keeps its own name.
func AudioExtension(codec string) string {
	if codec == "vorbis" {
		return "ogg"
	}
	return codec
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
