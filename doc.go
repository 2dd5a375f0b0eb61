/*
Package faceprep prepares face datasets for machine learning. It reads the images
of a source directory, detects a face on each of them with a cascade classifier,
then writes the face cropped, converted to grayscale and resized to a fixed size
into a destination directory. Images without a face and files which cannot be
decoded are reported and skipped.

The package provides a command line interface, supporting various flags for the
detector and the output. To check the supported commands type:

	$ faceprep --help

In case you wish to integrate the API in a self constructed environment here is a simple example:

	package main

	import (
		"context"
		"log"

		"github.com/esimov/faceprep"
	)

	func main() {
		det, err := faceprep.NewDefaultDetector(faceprep.DefaultDetectorParams())
		if err != nil {
			log.Fatal(err)
		}

		op := &faceprep.Ops{Src: "dataset/raw_images", Dst: "dataset/processed_images"}
		if _, err := op.Execute(context.Background(), faceprep.NewProcessor(det)); err != nil {
			log.Fatal(err)
		}
	}

The bundled cascade is the pigo facefinder. A custom one can be loaded with
NewPigoDetector, or an OpenCV Haar cascade with NewHaarDetector when the
package is built with the gocv tag.
*/
package faceprep
