// Package storage turns feed source entries into live storage handles.
//
// Three kinds of backend are supported:
//
//   - FileBackend for a local directory
//   - BlobBackend for an Azure blob container, addressed by SAS URL or by
//     storage account connection string
//   - S3Backend for Amazon S3 and S3-compatible object stores
//
// # Resolution
//
// StorageBackendFactory.BackendForSource selects a source entry by name
// (case-insensitive), validates it, computes its absolute path and base URI
// and constructs the handle:
//
//	doc, err := config.Load("sleet.json")
//	if err != nil {
//	    return err
//	}
//	factory := storage.NewStorageBackendFactory(logger, nil)
//	backend, err := factory.BackendForSource(ctx, doc, "feed")
//	if errors.Is(err, interfaces.ErrSourceNotFound) {
//	    ...
//	}
//
// Both paths always end in a slash. The base URI defaults to the absolute
// path; a feedSubPath is appended to both and used as key prefix.
//
// Default paths when none is configured:
//
//   - local: the directory containing the configuration file
//   - blob-sas: the container URL without the SAS token
//   - blob-account: the container URL of the account
//   - object-store: https://{bucket}.{regional s3 endpoint}/ or
//     {serviceURL}/{bucket}/ for S3-compatible stores
//
// # Object Store Credentials
//
// CredentialResolver tries, in order, a named profile, explicit keys,
// environment credentials, ECS container credentials and finally ambient
// (instance or web identity) credentials. The first strategy whose inputs are
// present decides the outcome; a missing profile fails instead of falling
// through. Ambient credentials are verified with STS GetCallerIdentity under
// DefaultIdentityCheckTimeout and a failure is reported as
// interfaces.CredentialError. Nothing is retried.
//
// # Errors
//
// Misconfiguration is reported as *interfaces.ConfigError naming the source,
// its type and the offending field. No handle is returned alongside an error.
package storage
