/*
Package sequencer is a multi-track audio/MIDI sequencing engine that hosts
sound-processing plugins and mixes their output into a single stream.

# Concept

The engine is driven once per audio block. Every block it:

	advances the playback window over the timeline;
	translates lane items inside the window into plugin events;
	renders tracks, patching audio between modules and tracks;
	sums track outputs into the interleaved device buffer.

# Timeline

The timeline atomic unit is a tick. 256 ticks make a line and every lane
holds at most one item per line. Item time is line*256 + delay.

Tracks render in parallel within dependency layers: a track that reads
another track's output is rendered only after its producer finished the
current block. Cross-track cycles are rejected when the song is set.

Components

	song - the timeline model and its persistence;
	render - per-track render context and the track render engine;
	engine - the block driver, commands and notifications;
	plugin - the plugin capability interface and builtin plugins;
	vst2 - VST2 plugin host adapter;
	portaudio, oto - audio device drivers;
	wav, mp3 - offline bounce sinks.
*/
package sequencer
