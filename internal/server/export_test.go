package server

// JSONUnmarshal exposes the package codec to the external tests.
var JSONUnmarshal = json.Unmarshal
