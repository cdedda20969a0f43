package engine

import "fmt"

// Settings is the validated engine configuration for one run. Values
// are checked by the config layer against an enumerated allowed set
// before they reach this package; BuildArgs only formats them.
type Settings struct {
	// DPI for downsampled color and gray images.
	DPI int
	// JPEGQuality 1-100 for DCT-encoded images.
	JPEGQuality int
	// PDFSettings is the Ghostscript preset, e.g. "/ebook".
	PDFSettings string
	// PaperWidthPts and PaperHeightPts fix the output media size in
	// points (72 points per inch).
	PaperWidthPts  int
	PaperHeightPts int
}

// Mono images keep a fixed high resolution; text scans degrade badly
// below 600dpi under CCITT.
const monoImageDPI = 600

// BuildArgs composes the fixed Ghostscript argument contract for one
// invocation: grayscale conversion, tiered downsampling tuned for
// scanned documents, fixed media size, and the temp output path.
// -dQUIET is deliberately absent so page-rendering notices appear on
// stdout for progress extraction.
func BuildArgs(s Settings, inputPath, outputPath string) []string {
	return []string{
		"-sDEVICE=pdfwrite",
		"-dCompatibilityLevel=1.4",
		fmt.Sprintf("-dPDFSETTINGS=%s", s.PDFSettings),
		"-dNOPAUSE",
		"-dBATCH",
		"-dSAFER",

		// Fixed media size, content scaled to fit.
		fmt.Sprintf("-dDEVICEWIDTHPOINTS=%d", s.PaperWidthPts),
		fmt.Sprintf("-dDEVICEHEIGHTPOINTS=%d", s.PaperHeightPts),
		"-dFIXEDMEDIA",
		"-dPDFFitPage",
		"-dAutoRotatePages=/None",

		// Grayscale conversion.
		"-sColorConversionStrategy=Gray",
		"-dProcessColorModel=/DeviceGray",

		// Downsampling tuned for scanned documents.
		"-dDownsampleColorImages=true",
		"-dDownsampleGrayImages=true",
		"-dDownsampleMonoImages=false",
		"-dColorImageDownsampleType=/Bicubic",
		"-dGrayImageDownsampleType=/Bicubic",
		"-dMonoImageDownsampleType=/Subsample",
		fmt.Sprintf("-dColorImageResolution=%d", s.DPI),
		fmt.Sprintf("-dGrayImageResolution=%d", s.DPI),
		fmt.Sprintf("-dMonoImageResolution=%d", monoImageDPI),

		// Compression filters.
		"-dAutoFilterColorImages=false",
		"-dAutoFilterGrayImages=false",
		"-dColorImageFilter=/DCTEncode",
		"-dGrayImageFilter=/DCTEncode",
		"-dMonoImageFilter=/CCITTFaxEncode",
		fmt.Sprintf("-dJPEGQ=%d", s.JPEGQuality),

		// Structural optimizations.
		"-dDetectDuplicateImages=true",
		"-dCompressFonts=true",
		"-dSubsetFonts=true",
		"-dCompressPages=true",
		"-dUseFlateCompression=true",

		fmt.Sprintf("-sOutputFile=%s", outputPath),
		inputPath,
	}
}
