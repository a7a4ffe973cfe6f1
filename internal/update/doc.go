// Package update reconciles the running app and its backend service against
// the latest published release, and installs app updates.
//
// Three sources are queried concurrently on every pass:
//   - the backend's /api/version endpoint (BackendClient)
//   - the signed update manifest (ManifestProvider, behind the Provider interface)
//   - the GitHub release feed, used only to read a backend version out of the notes
//
// Only a failing update check is reported in VersionStatus.Error. A missing
// backend reports UnknownVersion and a failing feed is ignored.
//
// Example usage:
//
//	provider := update.NewManifestProvider(manifestURL, publicKey, version)
//	coord := update.NewCoordinator(provider, update.NewBackendClient(backendURL))
//	status := coord.Reconcile(ctx)
//	if status.AppUpdateAvailable {
//	    _, err := coord.InstallAndRelaunch(ctx, func(p update.DownloadProgress) {
//	        fmt.Printf("\r%d%%", p.Percentage)
//	    })
//	}
package update
