// Package metrics measures objective quality between a source and a
// candidate encode by shelling out to ffmpeg's compare filters. MS-SSIM runs
// libvmaf per YUV plane with duration-based frame sampling and fuses the
// planes with configurable luma/chroma weights; SSIM and PSNR parse the
// filters' stderr summary lines.
package metrics
