// Package validate holds the three structural validation stages that
// run between harvest and scanning: payload (size/checksum), bag
// (BagIt structure and manifests), and xml (well-formedness of the
// export documents). Structural violations fail a deposit permanently;
// re-fetching cannot repair malformed content.
package validate
