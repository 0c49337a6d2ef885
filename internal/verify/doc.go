// Package verify decides whether a candidate encode preserves enough of the
// source's quality to commit. It degrades across metric paths (fused
// MS-SSIM+SSIM, then SSIM, then luma-only SSIM) and resolves the acceptance
// threshold from the source duration and the strategy's intent.
package verify
