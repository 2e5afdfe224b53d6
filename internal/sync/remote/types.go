package remote

import "github.com/studykit/colsync/internal/collection"

// Sync protocol methods
const (
	MethodHostKey      = "hostKey"
	MethodMeta         = "meta"
	MethodStart        = "start"
	MethodApplyChanges = "applyChanges"
	MethodChunk        = "chunk"
	MethodApplyChunk   = "applyChunk"
	MethodSanityCheck  = "sanityCheck2"
	MethodFinish       = "finish"
	MethodAbort        = "abort"
	MethodUpload       = "upload"
	MethodDownload     = "download"
)

// Media protocol methods
const (
	MethodMediaBegin    = "begin"
	MethodMediaChanges  = "mediaChanges"
	MethodDownloadFiles = "downloadFiles"
	MethodUploadChanges = "uploadChanges"
	MethodMediaSanity   = "mediaSanity"
)

// SyncVersion is the protocol version sent with meta
const SyncVersion = 10

// Sanity and upload status values
const (
	SanityOK       = "ok"
	SanityBad      = "bad"
	MediaSanityOK  = "OK"
	MediaSanityBad = "FAILED"
)

// HostKeyRequest carries the login credentials
type HostKeyRequest struct {
	Username string `json:"u"`
	Password string `json:"p"`
}

// HostKeyResponse carries the session key
type HostKeyResponse struct {
	Key string `json:"key"`
}

// MetaRequest announces the client
type MetaRequest struct {
	Version       int    `json:"v"`
	ClientVersion string `json:"cv"`
}

// MetaResponse describes the remote collection
type MetaResponse struct {
	Mod       int64  `json:"mod"`
	SchemaMod int64  `json:"scm"`
	USN       int    `json:"usn"`
	Timestamp int64  `json:"ts"`
	MediaUSN  int    `json:"musn"`
	Message   string `json:"msg"`
	Continue  bool   `json:"cont"`
	Username  string `json:"uname"`
	Empty     bool   `json:"empty"`
}

// StartRequest opens a sync and sends local removals
type StartRequest struct {
	MinUSN     int                `json:"minUsn"`
	LocalNewer bool               `json:"lnewer"`
	Graves     []collection.Grave `json:"graves"`
}

// StartResponse returns the remote removals
type StartResponse struct {
	Graves []collection.Grave `json:"graves"`
}

// ChangesRequest carries local small objects
type ChangesRequest struct {
	Changes []collection.Record `json:"changes"`
}

// ChangesResponse carries remote small objects
type ChangesResponse struct {
	Changes []collection.Record `json:"changes"`
}

// Chunk is one batch of large objects
type Chunk struct {
	Done    bool                `json:"done"`
	Records []collection.Record `json:"records"`
}

// ApplyChunkRequest carries one local chunk
type ApplyChunkRequest struct {
	Chunk Chunk `json:"chunk"`
}

// SanityRequest carries the local row counts
type SanityRequest struct {
	Client collection.Counts `json:"client"`
}

// SanityResponse is the remote verdict on the merged data
type SanityResponse struct {
	Status string            `json:"status"`
	Client collection.Counts `json:"c,omitempty"`
	Server collection.Counts `json:"s,omitempty"`
}

// FinishResponse carries the new modification time
type FinishResponse struct {
	Mod int64 `json:"mod"`
}

// MediaBeginResponse describes the remote media state
type MediaBeginResponse struct {
	USN int `json:"usn"`
}

// MediaChangesRequest asks for media changes after a usn
type MediaChangesRequest struct {
	LastUSN int `json:"lastUsn"`
}

// MediaChange is one remote media entry; an empty checksum means removed
type MediaChange struct {
	Name     string `json:"fname"`
	USN      int    `json:"usn"`
	Checksum string `json:"csum"`
}

// MediaChangesResponse lists remote media changes in usn order
type MediaChangesResponse struct {
	Changes []MediaChange `json:"changes"`
}

// DownloadFilesRequest names the files to fetch
type DownloadFilesRequest struct {
	Files []string `json:"files"`
}

// UploadChangesResponse reports how much of an upload the remote applied
type UploadChangesResponse struct {
	Processed  int `json:"processed"`
	CurrentUSN int `json:"currentUsn"`
}

// MediaSanityRequest carries the local media file count
type MediaSanityRequest struct {
	Local int `json:"local"`
}

// MediaSanityResponse is the remote verdict on the media counts
type MediaSanityResponse struct {
	Status string `json:"status"`
}
