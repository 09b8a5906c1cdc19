package bridge

import (
	"fmt"
	"path/filepath"

	"emgpipe/internal/emgjson"
	"emgpipe/internal/logging"
	"emgpipe/internal/services"
)

// ApplyEdits folds the edits saved in editedMat back into a result JSON at
// outJSON. The edited container is authoritative for unit-level content only;
// every other field carries over from the original decomposition JSON.
func (b *Bridge) ApplyEdits(originalJSON, editedMat, outJSON string) error {
	original, err := emgjson.Load(originalJSON)
	if err != nil {
		return err
	}
	edition, err := ReadEdition(editedMat)
	if err != nil {
		return err
	}
	if n := original.SignalLength(); len(original.RawSignal) > 0 && edition.Samples > 0 && edition.Samples != n {
		return services.Wrap(services.ErrCountMismatch, "bridge", "apply edits",
			fmt.Sprintf("%s holds %d samples, original has %d", filepath.Base(editedMat), edition.Samples, n), nil)
	}

	units := make([]emgjson.Unit, len(edition.PulseTrain))
	for i := range units {
		units[i] = emgjson.Unit{
			PulseTrain: edition.PulseTrain[i],
			Discharges: edition.Discharges[i],
			Accuracy:   edition.Accuracy[i],
		}
	}
	samples := edition.Samples
	if samples == 0 {
		samples = original.SignalLength()
	}

	result := *original
	result.Units = units
	result.BinaryFiring = emgjson.BuildBinaryFiring(samples, units)
	result.Metadata.Filename = editedMat

	if err := emgjson.Save(outJSON, &result, b.gzipLevel); err != nil {
		return err
	}
	b.logger.Info("applied edits",
		logging.String("edited", filepath.Base(editedMat)),
		logging.String("output", filepath.Base(outJSON)),
		logging.Int("units", len(units)))
	return nil
}
