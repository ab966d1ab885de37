package nnet

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path"
)

// Checkpoint holds the trained model state in a form which can be saved to
// disk or blob storage and restored into a network with the same config.
type Checkpoint struct {
	Model  string
	Epoch  int
	Conf   Config
	Params []LayerData
}

// LayerData is the state for one layer: weights and biases for param layers
// plus running statistics for batch normalisation.
type LayerData struct {
	Layer       int
	Weights     []float32
	Biases      []float32
	RunningMean []float32
	RunningVar  []float32
}

// Params extracts the checkpoint state from the network.
func (n *Network) Params() []LayerData {
	var params []LayerData
	for i, layer := range n.Layers {
		l, isParam := layer.(ParamLayer)
		s, isStats := layer.(StatsLayer)
		if !isParam && !isStats {
			continue
		}
		d := LayerData{Layer: i}
		if isParam {
			W, B := l.Params()
			d.Weights = append([]float32{}, W.Data()...)
			d.Biases = append([]float32{}, B.Data()...)
		}
		if isStats {
			mean, vari := s.RunningStats()
			d.RunningMean = append([]float32{}, mean...)
			d.RunningVar = append([]float32{}, vari...)
		}
		params = append(params, d)
	}
	return params
}

// SetParams loads the checkpoint state into the network.
func (n *Network) SetParams(params []LayerData) error {
	for _, d := range params {
		if d.Layer < 0 || d.Layer >= len(n.Layers) {
			return fmt.Errorf("SetParams: no layer %d in network", d.Layer)
		}
		layer := n.Layers[d.Layer]
		if d.Weights != nil {
			l, ok := layer.(ParamLayer)
			if !ok {
				return fmt.Errorf("SetParams: layer %d has no parameters", d.Layer)
			}
			if err := l.SetParams(d.Weights, d.Biases); err != nil {
				return fmt.Errorf("SetParams: layer %d: %s", d.Layer, err)
			}
		}
		if d.RunningMean != nil {
			s, ok := layer.(StatsLayer)
			if !ok {
				return fmt.Errorf("SetParams: layer %d has no running stats", d.Layer)
			}
			if err := s.SetRunningStats(d.RunningMean, d.RunningVar); err != nil {
				return fmt.Errorf("SetParams: layer %d: %s", d.Layer, err)
			}
		}
	}
	return nil
}

// Save checkpoint in gob format to file under DataDir
func SaveCheckpoint(c *Checkpoint, name string) error {
	filePath := path.Join(DataDir, name+".ckpt")
	f, err := os.Create(filePath)
	if err != nil {
		return err
	}
	defer f.Close()
	fmt.Println("saving checkpoint to", name+".ckpt")
	return gob.NewEncoder(f).Encode(c)
}

// Load checkpoint in gob format from file under DataDir
func LoadCheckpoint(name string) (*Checkpoint, error) {
	filePath := path.Join(DataDir, name+".ckpt")
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCheckpoint(f)
}

// Decode checkpoint in gob format from the reader
func ReadCheckpoint(r io.Reader) (*Checkpoint, error) {
	c := new(Checkpoint)
	if err := gob.NewDecoder(r).Decode(c); err != nil {
		return nil, fmt.Errorf("error decoding checkpoint: %s", err)
	}
	return c, nil
}

// Encode the checkpoint to a byte slice in gob format
func (c *Checkpoint) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
