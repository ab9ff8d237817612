package crawl

// linkExtractionJS collects every anchor on the page together with the DOM
// neighborhood the prioritizer scores: the anchor's own text and attributes,
// its parent, siblings, children, and grandchildren. Field names line up
// with the JSON tags on prioritizer.Link.
const linkExtractionJS = `
(() => {
	function textAndDescendants(element, maxDepth, depth) {
		if (!element || depth > maxDepth) return [];
		let texts = [];
		if (element.textContent && element.textContent.trim()) {
			texts.push(element.textContent.trim());
		}
		if (element.children && element.children.length > 0 && depth < maxDepth) {
			for (let child of element.children) {
				texts = texts.concat(textAndDescendants(child, maxDepth, depth + 1));
			}
		}
		return texts;
	}

	function elementInfo(element) {
		const info = {
			text: element.textContent ? element.textContent.trim() : '',
			title: element.title || '',
			class: element.getAttribute('class') || '',
			id: element.getAttribute('id') || '',
			dataAttributes: {},
		};
		let dataCount = 0;
		for (let attr of element.attributes) {
			if (dataCount >= 5) break;
			if (attr.name.startsWith('data-')) {
				info.dataAttributes[attr.name] = attr.value;
				dataCount++;
			}
		}
		return info;
	}

	try {
		const links = [];
		const anchors = document.querySelectorAll('a[href]');
		for (let anchor of anchors) {
			const href = anchor.getAttribute('href');
			if (!href || !href.trim()) continue;
			let absoluteUrl;
			try {
				absoluteUrl = new URL(href.trim(), window.location.href).href;
			} catch (e) {
				continue;
			}

			const context = elementInfo(anchor);
			const parent = anchor.parentElement;
			context.parentText = parent ? (parent.textContent ? parent.textContent.trim() : '') : '';
			context.childrenTexts = textAndDescendants(anchor, 1, 1);
			context.grandchildrenTexts = textAndDescendants(anchor, 2, 2);

			context.siblingTexts = [];
			context.parentChildrenTexts = [];
			if (parent) {
				context.parent = elementInfo(parent);
				for (let sibling of parent.children) {
					const entry = {
						text: sibling.textContent ? sibling.textContent.trim() : '',
						childrenTexts: textAndDescendants(sibling, 1, 1),
						grandchildrenTexts: textAndDescendants(sibling, 2, 2),
					};
					context.parentChildrenTexts.push(entry);
					if (sibling !== anchor) {
						context.siblingTexts.push(entry);
					}
				}
			}

			links.push({url: absoluteUrl, context: context});
		}
		return links;
	} catch (error) {
		return [];
	}
})()
`
