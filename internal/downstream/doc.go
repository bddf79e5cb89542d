// Package downstream is the HTTP client for the remote agent service.
//
// Ask sends exactly one POST per call with the body {"message": text} and the
// header set built by the auth package. It reports the raw status, headers and
// body; classifying the reply is the gateway's job. No retries are attempted.
package downstream
