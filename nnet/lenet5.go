package nnet

// LeNet5 returns the config for the LeNet-5 variant classifier: two stages of
// convolution, batch normalisation, relu and average pooling followed by three
// fully connected layers. The 84 unit activation before the final projection
// is the latent feature vector.
func LeNet5(classes int) Config {
	return Config{
		Eta:           0.1,
		Lambda:        1e-4,
		Momentum:      0.9,
		NormalWeights: true,
		TrainBatch:    512,
		TestBatch:     512,
		MaxEpoch:      30,
	}.AddLayers(
		Conv{Nfeats: 6, Size: 5, Pad: 2},
		BatchNorm{},
		Activation{Atype: "relu"},
		AvgPool{Size: 2},
		Conv{Nfeats: 16, Size: 5},
		BatchNorm{},
		Activation{Atype: "relu"},
		AvgPool{Size: 2},
		Flatten{},
		Linear{Nout: 120},
		BatchNorm{},
		Activation{Atype: "relu"},
		Linear{Nout: 84},
		BatchNorm{},
		Activation{Atype: "relu"},
		Linear{Nout: classes},
		LogRegression{},
	)
}
