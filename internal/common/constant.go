package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// FileNameHeaderName carries the original filename of an upload.
const FileNameHeaderName = "x-file-name"

// ContentTypeHeaderName carries the declared content type of an upload
// and of a download.
const ContentTypeHeaderName = "x-content-type"

// ContentDispositionHeaderName is set on download responses.
const ContentDispositionHeaderName = "content-disposition"

// EncryptedSuffix is appended to the original filename of a stored file.
const EncryptedSuffix = ".enc"

// CSVContentType is the only content type accepted for ingestion.
const CSVContentType = "text/csv"
